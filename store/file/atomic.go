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

	"github.com/pkg/errors"
)

const (
	tempSuffix  = ".tmp"
	journalName = "commit.journal"
)

// writeSynced writes data to path and fsyncs it before closing.
func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to sync %s", path)
	}
	return errors.Wrapf(f.Close(), "failed to close %s", path)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.Wrapf(err, "failed to open directory %s", dir)
	}
	defer d.Close()
	return errors.Wrapf(d.Sync(), "failed to sync directory %s", dir)
}

// WriteFileAtomic replaces path with data: write a sibling temp file, fsync
// it, rename it over path and fsync the parent directory.
func WriteFileAtomic(path string, data []byte) error {
	tmp := path + tempSuffix
	if err := writeSynced(tmp, data); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to rename %s", tmp)
	}
	return syncDir(filepath.Dir(path))
}

type journalEntry struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type journal struct {
	Renames []journalEntry `json:"renames"`
}

func writeJournal(dir string, j journal) error {
	data, err := json.Marshal(j)
	if err != nil {
		return errors.Wrap(err, "failed to encode commit journal")
	}
	return WriteFileAtomic(filepath.Join(dir, journalName), data)
}

// applyJournal performs the renames listed in the journal and removes it.
// Renames whose source is already gone were applied before a crash.
func applyJournal(dir string, j journal) error {
	for _, r := range j.Renames {
		err := os.Rename(filepath.Join(dir, r.From), filepath.Join(dir, r.To))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to apply %s", r.From)
		}
	}
	if err := syncDir(dir); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, journalName)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove commit journal")
	}
	return syncDir(dir)
}

// recoverDir rolls a leftover commit journal forward and removes stray temp
// files of commits that never reached their journal.
func recoverDir(dir string) (bool, error) {
	rolled := false
	data, err := os.ReadFile(filepath.Join(dir, journalName))
	if err == nil {
		var j journal
		if err = json.Unmarshal(data, &j); err != nil {
			return false, errors.Wrap(err, "corrupt commit journal")
		}
		if err = applyJournal(dir, j); err != nil {
			return false, err
		}
		rolled = true
	} else if !os.IsNotExist(err) {
		return false, errors.Wrap(err, "failed to read commit journal")
	}
	strays, err := filepath.Glob(filepath.Join(dir, "*"+tempSuffix))
	if err != nil {
		return rolled, errors.Wrap(err, "failed to list temp files")
	}
	for _, p := range strays {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return rolled, errors.Wrapf(err, "failed to remove %s", p)
		}
	}
	return rolled, nil
}
