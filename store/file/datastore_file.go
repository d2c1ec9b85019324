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
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store"
)

// Collection file names under the data directory
const (
	DevicesFile        = "devices.json"
	ImagesFile         = "images.json"
	KernelSetsFile     = "kernel_sets.json"
	UnknownDevicesFile = "unknown_devices.json"
)

// Options configures the file data store
type Options struct {
	Dir string
	// DefaultKernelSet is seeded when no default kernel set exists.
	DefaultKernelSet model.KernelSet
}

// DataStore is the registry persisted as one JSON document per collection
type DataStore struct {
	dir string

	devices        *table[model.Device]
	images         *table[model.Image]
	kernelSets     *table[model.KernelSet]
	unknownDevices *table[model.UnknownDevice]

	// state is swapped whole on every commit; publishMu orders the swaps
	// of writers holding disjoint collection locks.
	state     atomic.Pointer[snapshot]
	publishMu sync.Mutex
}

// snapshot is one committed state of every collection. A commit that
// spans collections becomes visible to readers in a single pointer swap.
type snapshot struct {
	devices        *immutable.SortedMap[string, model.Device]
	images         *immutable.SortedMap[string, model.Image]
	kernelSets     *immutable.SortedMap[string, model.KernelSet]
	unknownDevices *immutable.SortedMap[string, model.UnknownDevice]
}

var _ store.DataStore = (*DataStore)(nil)

// NewDataStore opens the registry under opts.Dir, rolling forward an
// interrupted commit and seeding the default kernel set.
func NewDataStore(ctx context.Context, opts Options) (*DataStore, error) {
	l := log.FromContext(ctx)
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	rolled, err := recoverDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	if rolled {
		l.Warnf("rolled forward interrupted commit in %s", opts.Dir)
	}
	ds := &DataStore{
		dir: opts.Dir,
		devices: newTable(DevicesFile,
			func(d model.Device) string { return d.MAC }),
		images: newTable(ImagesFile,
			func(i model.Image) string { return i.ID }),
		kernelSets: newTable(KernelSetsFile,
			func(k model.KernelSet) string { return k.Name }),
		unknownDevices: newTable(UnknownDevicesFile,
			func(u model.UnknownDevice) string { return u.MAC }),
	}
	var snap snapshot
	if snap.devices, err = ds.devices.load(opts.Dir); err != nil {
		return nil, err
	}
	if snap.images, err = ds.images.load(opts.Dir); err != nil {
		return nil, err
	}
	if snap.kernelSets, err = ds.kernelSets.load(opts.Dir); err != nil {
		return nil, err
	}
	if snap.unknownDevices, err = ds.unknownDevices.load(opts.Dir); err != nil {
		return nil, err
	}
	ds.state.Store(&snap)
	if err := ds.seedDefaultKernelSet(ctx, opts.DefaultKernelSet); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ds *DataStore) seedDefaultKernelSet(ctx context.Context, seed model.KernelSet) error {
	return ds.Update(ctx, []store.Collection{store.KernelSets}, func(tx store.Tx) error {
		sets := tx.ListKernelSets()
		for _, ks := range sets {
			if ks.IsDefault {
				return nil
			}
		}
		if existing := tx.GetKernelSet(model.DefaultKernelSetName); existing != nil {
			existing.IsDefault = true
			return tx.PutKernelSet(*existing)
		}
		seed.Name = model.DefaultKernelSetName
		seed.IsDefault = true
		log.FromContext(ctx).Infof("seeding kernel set %q", seed.Name)
		return tx.PutKernelSet(seed)
	})
}

// Ping checks that the data directory is reachable
func (ds *DataStore) Ping(ctx context.Context) error {
	fi, err := os.Stat(ds.dir)
	if err != nil {
		return errors.Wrap(err, "data directory unavailable")
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", ds.dir)
	}
	return nil
}

// View runs fn on the committed snapshot
func (ds *DataStore) View(ctx context.Context, fn func(tx store.Tx) error) error {
	return fn(ds.begin(nil))
}

// Update locks the named collections in lock order, runs fn and commits
func (ds *DataStore) Update(
	ctx context.Context,
	collections []store.Collection,
	fn func(tx store.Tx) error,
) error {
	locked := make(map[store.Collection]bool, len(collections))
	for _, c := range collections {
		locked[c] = true
	}
	order := make([]store.Collection, 0, len(locked))
	for c := range locked {
		order = append(order, c)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	for _, c := range order {
		ds.mutex(c).Lock()
	}
	defer func() {
		for i := len(order) - 1; i >= 0; i-- {
			ds.mutex(order[i]).Unlock()
		}
	}()

	tx := ds.begin(locked)
	if err := fn(tx); err != nil {
		return err
	}
	return ds.commit(ctx, tx)
}

// Close is a no-op: every commit is durable when Update returns.
func (ds *DataStore) Close(ctx context.Context) error {
	return nil
}

func (ds *DataStore) mutex(c store.Collection) sync.Locker {
	switch c {
	case store.Devices:
		return &ds.devices.mu
	case store.Images:
		return &ds.images.mu
	case store.KernelSets:
		return &ds.kernelSets.mu
	case store.UnknownDevices:
		return &ds.unknownDevices.mu
	}
	panic("store: invalid collection " + c.String())
}

func (ds *DataStore) begin(locked map[store.Collection]bool) *txn {
	return &txn{
		locked:   locked,
		dirty:    map[store.Collection]bool{},
		snapshot: *ds.state.Load(),
	}
}

type pendingFile struct {
	collection store.Collection
	tmp        string
	final      string
}

func (ds *DataStore) encode(tx *txn, c store.Collection) ([]byte, string, error) {
	switch c {
	case store.Devices:
		data, err := encodeRows(tx.devices)
		return data, ds.devices.file, err
	case store.Images:
		data, err := encodeRows(tx.images)
		return data, ds.images.file, err
	case store.KernelSets:
		data, err := encodeRows(tx.kernelSets)
		return data, ds.kernelSets.file, err
	case store.UnknownDevices:
		data, err := encodeRows(tx.unknownDevices)
		return data, ds.unknownDevices.file, err
	}
	return nil, "", errors.Errorf("invalid collection %d", c)
}

// commit persists the dirty collections of tx and publishes its snapshots.
// A single file is replaced atomically by rename; several files go through
// the commit journal, which is the commit point.
func (ds *DataStore) commit(ctx context.Context, tx *txn) error {
	var pending []pendingFile
	cleanup := func() {
		for _, p := range pending {
			os.Remove(filepath.Join(ds.dir, p.tmp))
		}
	}
	for _, c := range store.Collections {
		if !tx.dirty[c] {
			continue
		}
		data, name, err := ds.encode(tx, c)
		if err != nil {
			cleanup()
			return errors.Wrapf(err, "failed to encode %s", c)
		}
		p := pendingFile{collection: c, tmp: name + tempSuffix, final: name}
		pending = append(pending, p)
		if err := writeSynced(filepath.Join(ds.dir, p.tmp), data); err != nil {
			cleanup()
			return err
		}
	}
	if len(pending) == 0 {
		return nil
	}

	j := journal{}
	for _, p := range pending {
		j.Renames = append(j.Renames, journalEntry{From: p.tmp, To: p.final})
	}
	if len(pending) > 1 {
		if err := writeJournal(ds.dir, j); err != nil {
			cleanup()
			return err
		}
		ds.publish(tx)
		if err := applyJournal(ds.dir, j); err != nil {
			log.FromContext(ctx).Errorf("commit journaled but not applied: %v", err)
			return errors.Wrap(err, "commit journaled but not applied")
		}
		return nil
	}

	p := pending[0]
	if err := os.Rename(filepath.Join(ds.dir, p.tmp), filepath.Join(ds.dir, p.final)); err != nil {
		cleanup()
		return errors.Wrapf(err, "failed to replace %s", p.final)
	}
	ds.publish(tx)
	return syncDir(ds.dir)
}

// publish merges the dirty collections of tx into the committed state.
// Other collections keep whatever concurrent writers committed.
func (ds *DataStore) publish(tx *txn) {
	ds.publishMu.Lock()
	defer ds.publishMu.Unlock()
	next := *ds.state.Load()
	if tx.dirty[store.Devices] {
		next.devices = tx.devices
	}
	if tx.dirty[store.Images] {
		next.images = tx.images
	}
	if tx.dirty[store.KernelSets] {
		next.kernelSets = tx.kernelSets
	}
	if tx.dirty[store.UnknownDevices] {
		next.unknownDevices = tx.unknownDevices
	}
	ds.state.Store(&next)
}

// txn stages writes on copies of the immutable snapshots. A nil locked
// map marks a read-only transaction.
type txn struct {
	locked map[store.Collection]bool
	dirty  map[store.Collection]bool

	snapshot
}

func (tx *txn) writable(c store.Collection) error {
	if tx.locked == nil {
		return store.ErrReadOnly
	}
	if !tx.locked[c] {
		return errors.Wrap(store.ErrNotLocked, c.String())
	}
	tx.dirty[c] = true
	return nil
}

func (tx *txn) GetDevice(mac string) *model.Device {
	return getRow(tx.devices, mac)
}

func (tx *txn) ListDevices() []model.Device {
	return listRows(tx.devices)
}

func (tx *txn) PutDevice(dev model.Device) error {
	if dev.MAC == "" {
		return errors.New("store: device without mac")
	}
	if err := tx.writable(store.Devices); err != nil {
		return err
	}
	tx.devices = tx.devices.Set(dev.MAC, dev)
	return nil
}

func (tx *txn) DeleteDevice(mac string) error {
	if err := tx.writable(store.Devices); err != nil {
		return err
	}
	tx.devices = tx.devices.Delete(mac)
	return nil
}

func (tx *txn) GetImage(id string) *model.Image {
	return getRow(tx.images, id)
}

func (tx *txn) ListImages() []model.Image {
	return listRows(tx.images)
}

func (tx *txn) PutImage(img model.Image) error {
	if img.ID == "" {
		return errors.New("store: image without id")
	}
	if err := tx.writable(store.Images); err != nil {
		return err
	}
	tx.images = tx.images.Set(img.ID, img)
	return nil
}

func (tx *txn) DeleteImage(id string) error {
	if err := tx.writable(store.Images); err != nil {
		return err
	}
	tx.images = tx.images.Delete(id)
	return nil
}

func (tx *txn) GetKernelSet(name string) *model.KernelSet {
	return getRow(tx.kernelSets, name)
}

func (tx *txn) ListKernelSets() []model.KernelSet {
	return listRows(tx.kernelSets)
}

func (tx *txn) PutKernelSet(ks model.KernelSet) error {
	if ks.Name == "" {
		return errors.New("store: kernel set without name")
	}
	if err := tx.writable(store.KernelSets); err != nil {
		return err
	}
	tx.kernelSets = tx.kernelSets.Set(ks.Name, ks)
	return nil
}

func (tx *txn) DeleteKernelSet(name string) error {
	if err := tx.writable(store.KernelSets); err != nil {
		return err
	}
	tx.kernelSets = tx.kernelSets.Delete(name)
	return nil
}

func (tx *txn) GetUnknownDevice(mac string) *model.UnknownDevice {
	return getRow(tx.unknownDevices, mac)
}

func (tx *txn) ListUnknownDevices() []model.UnknownDevice {
	return listRows(tx.unknownDevices)
}

func (tx *txn) PutUnknownDevice(dev model.UnknownDevice) error {
	if dev.MAC == "" {
		return errors.New("store: unknown device without mac")
	}
	if err := tx.writable(store.UnknownDevices); err != nil {
		return err
	}
	tx.unknownDevices = tx.unknownDevices.Set(dev.MAC, dev)
	return nil
}

func (tx *txn) DeleteUnknownDevice(mac string) error {
	if err := tx.writable(store.UnknownDevices); err != nil {
		return err
	}
	tx.unknownDevices = tx.unknownDevices.Delete(mac)
	return nil
}
