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

package iscsi

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store/file"
)

const bindingExt = ".json"

// Bindings keeps one target binding record per image id in a directory
type Bindings struct {
	dir string
}

// NewBindings returns the binding records under dir, creating it
func NewBindings(dir string) (*Bindings, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create bindings directory")
	}
	return &Bindings{dir: dir}, nil
}

func (b *Bindings) path(imageID string) string {
	return filepath.Join(b.dir, imageID+bindingExt)
}

// Get returns the binding of an image, nil if there is none
func (b *Bindings) Get(imageID string) (*model.TargetBinding, error) {
	data, err := os.ReadFile(b.path(imageID))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read binding %s", imageID)
	}
	var tb model.TargetBinding
	if err := json.Unmarshal(data, &tb); err != nil {
		return nil, errors.Wrapf(err, "failed to decode binding %s", imageID)
	}
	return &tb, nil
}

// Put replaces the binding of tb.ImageID
func (b *Bindings) Put(tb model.TargetBinding) error {
	data, err := json.MarshalIndent(tb, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode binding")
	}
	return file.WriteFileAtomic(b.path(tb.ImageID), data)
}

// Delete removes the binding of an image
func (b *Bindings) Delete(imageID string) error {
	err := os.Remove(b.path(imageID))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove binding %s", imageID)
	}
	return nil
}

// List returns every binding sorted by image id
func (b *Bindings) List() ([]model.TargetBinding, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bindings")
	}
	var out []model.TargetBinding
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), bindingExt) {
			continue
		}
		tb, err := b.Get(strings.TrimSuffix(e.Name(), bindingExt))
		if err != nil {
			return nil, err
		}
		if tb != nil {
			out = append(out, *tb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImageID < out[j].ImageID })
	return out, nil
}
