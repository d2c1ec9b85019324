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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store"
)

func openStore(t *testing.T, dir string) *DataStore {
	ds, err := NewDataStore(context.Background(), Options{
		Dir: dir,
		DefaultKernelSet: model.KernelSet{
			KernelURL:    "http://boot/kernel8.img",
			InitramfsURL: "http://boot/initramfs8",
		},
	})
	require.NoError(t, err)
	return ds
}

func TestSeedDefaultKernelSet(t *testing.T) {
	dir := t.TempDir()
	ds := openStore(t, dir)

	var sets []model.KernelSet
	_ = ds.View(context.Background(), func(tx store.Tx) error {
		sets = tx.ListKernelSets()
		return nil
	})
	require.Len(t, sets, 1)
	assert.Equal(t, model.DefaultKernelSetName, sets[0].Name)
	assert.True(t, sets[0].IsDefault)
	assert.Equal(t, "http://boot/kernel8.img", sets[0].KernelURL)

	// reopening does not seed twice
	ds = openStore(t, dir)
	_ = ds.View(context.Background(), func(tx store.Tx) error {
		sets = tx.ListKernelSets()
		return nil
	})
	assert.Len(t, sets, 1)
}

func TestUpdatePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	ds := openStore(t, dir)

	err := ds.Update(ctx, []store.Collection{store.Images, store.Devices}, func(tx store.Tx) error {
		if err := tx.PutDevice(model.Device{
			MAC: "aa:bb:cc:dd:ee:ff", DeviceType: model.DeviceTypeX64, ImageID: "img",
		}); err != nil {
			return err
		}
		return tx.PutImage(model.Image{
			ID: "img", DeviceType: model.DeviceTypeX64, AssignedTo: "aa:bb:cc:dd:ee:ff",
		})
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, journalName))
	assert.True(t, os.IsNotExist(err))

	ds = openStore(t, dir)
	_ = ds.View(ctx, func(tx store.Tx) error {
		dev := tx.GetDevice("aa:bb:cc:dd:ee:ff")
		require.NotNil(t, dev)
		assert.Equal(t, "img", dev.ImageID)
		img := tx.GetImage("img")
		require.NotNil(t, img)
		assert.Equal(t, "aa:bb:cc:dd:ee:ff", img.AssignedTo)
		assert.Nil(t, tx.GetDevice("00:00:00:00:00:00"))
		return nil
	})
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	ds := openStore(t, t.TempDir())
	boom := errors.New("boom")

	testCases := []struct {
		Name        string
		Collections []store.Collection
		Fn          func(tx store.Tx) error
		Error       error
	}{
		{
			Name:        "callback error discards writes",
			Collections: []store.Collection{store.Devices},
			Fn: func(tx store.Tx) error {
				_ = tx.PutDevice(model.Device{MAC: "aa:aa:aa:aa:aa:aa"})
				return boom
			},
			Error: boom,
		},
		{
			Name:        "write to unlocked collection",
			Collections: []store.Collection{store.Devices},
			Fn: func(tx store.Tx) error {
				return tx.PutImage(model.Image{ID: "x"})
			},
			Error: store.ErrNotLocked,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			err := ds.Update(ctx, tc.Collections, tc.Fn)
			assert.True(t, errors.Is(err, tc.Error), err)
		})
	}
	_ = ds.View(ctx, func(tx store.Tx) error {
		assert.Empty(t, tx.ListDevices())
		assert.Empty(t, tx.ListImages())
		assert.ErrorIs(t, tx.PutDevice(model.Device{MAC: "bb:bb:bb:bb:bb:bb"}), store.ErrReadOnly)
		return nil
	})
}

func TestViewDoesNotSeeUncommitted(t *testing.T) {
	ctx := context.Background()
	ds := openStore(t, t.TempDir())

	err := ds.Update(ctx, []store.Collection{store.Devices}, func(tx store.Tx) error {
		require.NoError(t, tx.PutDevice(model.Device{MAC: "aa:aa:aa:aa:aa:aa"}))
		// the staged row is visible inside the transaction only
		assert.NotNil(t, tx.GetDevice("aa:aa:aa:aa:aa:aa"))
		_ = ds.View(ctx, func(view store.Tx) error {
			assert.Nil(t, view.GetDevice("aa:aa:aa:aa:aa:aa"))
			return nil
		})
		return nil
	})
	require.NoError(t, err)
	_ = ds.View(ctx, func(view store.Tx) error {
		assert.NotNil(t, view.GetDevice("aa:aa:aa:aa:aa:aa"))
		return nil
	})
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	ds := openStore(t, t.TempDir())
	mac := "aa:aa:aa:aa:aa:aa"

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(reverse bool) {
			defer wg.Done()
			cols := []store.Collection{store.Devices, store.UnknownDevices}
			if reverse {
				cols = []store.Collection{store.UnknownDevices, store.Devices}
			}
			err := ds.Update(ctx, cols, func(tx store.Tx) error {
				u := tx.GetUnknownDevice(mac)
				if u == nil {
					u = &model.UnknownDevice{MAC: mac}
				}
				u.BootCount++
				return tx.PutUnknownDevice(*u)
			})
			assert.NoError(t, err)
		}(i%2 == 0)
	}
	wg.Wait()

	_ = ds.View(ctx, func(tx store.Tx) error {
		u := tx.GetUnknownDevice(mac)
		require.NotNil(t, u)
		assert.Equal(t, 20, u.BootCount)
		return nil
	})
}

func TestViewSeesWholeCommits(t *testing.T) {
	ctx := context.Background()
	ds := openStore(t, t.TempDir())
	mac := "aa:aa:aa:aa:aa:aa"
	const rounds = 200

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				_ = ds.View(ctx, func(tx store.Tx) error {
					dev := tx.GetDevice(mac)
					img := tx.GetImage("img")
					if dev == nil || img == nil {
						assert.True(t, dev == nil && img == nil, "torn commit")
						return nil
					}
					assert.Equal(t, dev.ImageID, img.Name, "torn commit")
					return nil
				})
			}
		}()
	}

	for i := 0; i < rounds; i++ {
		gen := fmt.Sprintf("gen-%d", i)
		err := ds.Update(ctx, []store.Collection{store.Devices, store.Images},
			func(tx store.Tx) error {
				if err := tx.PutDevice(model.Device{MAC: mac, ImageID: gen}); err != nil {
					return err
				}
				return tx.PutImage(model.Image{ID: "img", Name: gen})
			})
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
}

func TestDisjointCommitsKeepEachOther(t *testing.T) {
	ctx := context.Background()
	ds := openStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = ds.Update(ctx, []store.Collection{store.Devices}, func(tx store.Tx) error {
					return tx.PutDevice(model.Device{MAC: fmt.Sprintf("aa:aa:aa:aa:aa:%02x", i)})
				})
			} else {
				err = ds.Update(ctx, []store.Collection{store.UnknownDevices}, func(tx store.Tx) error {
					return tx.PutUnknownDevice(model.UnknownDevice{MAC: fmt.Sprintf("bb:bb:bb:bb:bb:%02x", i)})
				})
			}
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	_ = ds.View(ctx, func(tx store.Tx) error {
		assert.Len(t, tx.ListDevices(), 10)
		assert.Len(t, tx.ListUnknownDevices(), 10)
		return nil
	})
}

func TestRollForwardJournal(t *testing.T) {
	dir := t.TempDir()

	devices, _ := json.Marshal([]model.Device{{MAC: "aa:bb:cc:dd:ee:ff", ImageID: "img"}})
	images, _ := json.Marshal([]model.Image{{ID: "img", AssignedTo: "aa:bb:cc:dd:ee:ff"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, DevicesFile+tempSuffix), devices, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ImagesFile+tempSuffix), images, 0o644))
	require.NoError(t, writeJournal(dir, journal{Renames: []journalEntry{
		{From: DevicesFile + tempSuffix, To: DevicesFile},
		{From: ImagesFile + tempSuffix, To: ImagesFile},
	}}))

	ds := openStore(t, dir)
	_ = ds.View(context.Background(), func(tx store.Tx) error {
		assert.NotNil(t, tx.GetDevice("aa:bb:cc:dd:ee:ff"))
		assert.NotNil(t, tx.GetImage("img"))
		return nil
	})
	_, err := os.Stat(filepath.Join(dir, journalName))
	assert.True(t, os.IsNotExist(err))
}

func TestStrayTempFilesDiscarded(t *testing.T) {
	dir := t.TempDir()
	devices, _ := json.Marshal([]model.Device{{MAC: "aa:bb:cc:dd:ee:ff"}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, DevicesFile+tempSuffix), devices, 0o644))

	ds := openStore(t, dir)
	_ = ds.View(context.Background(), func(tx store.Tx) error {
		assert.Empty(t, tx.ListDevices())
		return nil
	})
	_, err := os.Stat(filepath.Join(dir, DevicesFile+tempSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestBootLogRing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bl, err := NewBootLog(ctx, dir, 3, 0)
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, mac := range []string{"a", "b", "a", "c"} {
		require.NoError(t, bl.AppendBootLog(ctx, model.BootLogEntry{
			ID: string(rune('0' + i)), MAC: mac, Event: "check-in",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := bl.ListBootLogs(ctx, model.BootLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)
	assert.Equal(t, "1", all[2].ID)

	onlyA, _ := bl.ListBootLogs(ctx, model.BootLogFilter{MAC: "a"})
	require.Len(t, onlyA, 1)
	assert.Equal(t, "2", onlyA[0].ID)

	limited, _ := bl.ListBootLogs(ctx, model.BootLogFilter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "3", limited[0].ID)

	require.NoError(t, bl.Close(ctx))
	bl, err = NewBootLog(ctx, dir, 3, 0)
	require.NoError(t, err)
	reloaded, _ := bl.ListBootLogs(ctx, model.BootLogFilter{})
	assert.Equal(t, all, reloaded)
}

func TestBootLogBackgroundFlush(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bl, err := NewBootLog(ctx, dir, 10, 10*time.Millisecond)
	require.NoError(t, err)
	defer bl.Close(ctx)

	require.NoError(t, bl.AppendBootLog(ctx, model.BootLogEntry{ID: "1", MAC: "a"}))
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, BootLogsFile))
		return err == nil
	}, time.Second, 10*time.Millisecond)
}
