// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package file

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
)

// table is one registry collection: its document and the mutex
// serializing its writers. Committed rows live in the store snapshot.
type table[V any] struct {
	file string
	key  func(V) string
	mu   sync.Mutex
}

func newTable[V any](file string, key func(V) string) *table[V] {
	return &table[V]{
		file: file,
		key:  key,
	}
}

func (t *table[V]) load(dir string) (*immutable.SortedMap[string, V], error) {
	path := filepath.Join(dir, t.file)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return immutable.NewSortedMap[string, V](nil), nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var rows []V
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	b := immutable.NewSortedMapBuilder[string, V](nil)
	for _, row := range rows {
		b.Set(t.key(row), row)
	}
	return b.Map(), nil
}

func getRow[V any](m *immutable.SortedMap[string, V], key string) *V {
	v, ok := m.Get(key)
	if !ok {
		return nil
	}
	return &v
}

func listRows[V any](m *immutable.SortedMap[string, V]) []V {
	rows := make([]V, 0, m.Len())
	itr := m.Iterator()
	for !itr.Done() {
		_, v, _ := itr.Next()
		rows = append(rows, v)
	}
	return rows
}

func encodeRows[V any](m *immutable.SortedMap[string, V]) ([]byte, error) {
	return json.MarshalIndent(listRows(m), "", "  ")
}
