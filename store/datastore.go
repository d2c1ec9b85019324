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

package store

import (
	"context"
	"errors"

	"github.com/netboot-orchestrator/netboot/model"
)

// Collection identifies one of the registry collections. The numeric order
// is the lock acquisition order.
type Collection int

// Registry collections, in lock order
const (
	Devices Collection = iota
	Images
	KernelSets
	UnknownDevices
)

// Collections lists every registry collection in lock order
var Collections = []Collection{Devices, Images, KernelSets, UnknownDevices}

func (c Collection) String() string {
	switch c {
	case Devices:
		return "devices"
	case Images:
		return "images"
	case KernelSets:
		return "kernel_sets"
	case UnknownDevices:
		return "unknown_devices"
	}
	return "invalid"
}

var (
	// ErrReadOnly is returned when writing through a View transaction
	ErrReadOnly = errors.New("store: read-only transaction")
	// ErrNotLocked is returned when writing to a collection the update did
	// not lock
	ErrNotLocked = errors.New("store: collection not locked by transaction")
)

// Tx is a registry transaction. Getters return nil when the row does not
// exist; lists are sorted by key.
//
//nolint:lll - skip line length check for interface declaration.
type Tx interface {
	GetDevice(mac string) *model.Device
	ListDevices() []model.Device
	PutDevice(dev model.Device) error
	DeleteDevice(mac string) error

	GetImage(id string) *model.Image
	ListImages() []model.Image
	PutImage(img model.Image) error
	DeleteImage(id string) error

	GetKernelSet(name string) *model.KernelSet
	ListKernelSets() []model.KernelSet
	PutKernelSet(ks model.KernelSet) error
	DeleteKernelSet(name string) error

	GetUnknownDevice(mac string) *model.UnknownDevice
	ListUnknownDevices() []model.UnknownDevice
	PutUnknownDevice(dev model.UnknownDevice) error
	DeleteUnknownDevice(mac string) error
}

// DataStore is the device/image/kernel set registry
//
//go:generate ../utils/mockgen.sh
type DataStore interface {
	Ping(ctx context.Context) error
	// View runs fn against the latest committed snapshot without taking
	// any lock.
	View(ctx context.Context, fn func(tx Tx) error) error
	// Update runs fn holding the locks of the named collections and
	// commits its writes atomically. Nothing is persisted if fn fails.
	Update(ctx context.Context, collections []Collection, fn func(tx Tx) error) error
	Close(ctx context.Context) error
}

// BootLogStore is the append-only boot log
//
//go:generate ../utils/mockgen.sh
type BootLogStore interface {
	AppendBootLog(ctx context.Context, entry model.BootLogEntry) error
	// ListBootLogs returns entries newest first
	ListBootLogs(ctx context.Context, filter model.BootLogFilter) ([]model.BootLogEntry, error)
	Close(ctx context.Context) error
}
