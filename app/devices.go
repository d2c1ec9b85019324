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

package app

import (
	"context"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/store"
)

func checkKernelSet(tx store.Tx, name string) error {
	if name != "" && tx.GetKernelSet(name) == nil {
		return model.NewValidationError(errors.Errorf("kernel_set: %s does not exist", name))
	}
	return nil
}

// RegisterDevice registers a device, taking over its unknown-device record
func (a *app) RegisterDevice(
	ctx context.Context,
	reg model.DeviceRegistration,
) (*model.Device, error) {
	if err := reg.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	mac, err := model.NormalizeMAC(reg.MAC)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	dev := model.Device{
		MAC:        mac,
		DeviceType: reg.DeviceType,
		Name:       reg.Name,
		Enabled:    reg.Enabled == nil || *reg.Enabled,
		KernelSet:  reg.KernelSet,
		CreatedAt:  now,
		UpdatedAt:  now,
		SyncStatus: model.SyncStatusPending,
	}
	err = a.store.Update(ctx,
		[]store.Collection{store.Devices, store.KernelSets, store.UnknownDevices},
		func(tx store.Tx) error {
			if tx.GetDevice(mac) != nil {
				return errors.Wrapf(model.ErrConflict, "device %s already registered", mac)
			}
			if err := checkKernelSet(tx, dev.KernelSet); err != nil {
				return err
			}
			if tx.GetUnknownDevice(mac) != nil {
				if err := tx.DeleteUnknownDevice(mac); err != nil {
					return err
				}
			}
			return tx.PutDevice(dev)
		})
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Infof("registered %s device %s", dev.DeviceType, mac)
	a.publish(ctx, model.Event{Kind: model.EventDeviceRegistered, MAC: mac})
	a.reconcile(ctx, mac)
	return a.GetDevice(ctx, mac)
}

// UpdateDevice changes the settable fields of a device. Changing the type
// of a device with an image to a type the image does not have fails with
// ErrTypeMismatch.
func (a *app) UpdateDevice(
	ctx context.Context,
	mac string,
	upd model.DeviceUpdate,
) (*model.Device, error) {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	var changed bool
	err = a.store.Update(ctx,
		[]store.Collection{store.Devices, store.Images, store.KernelSets},
		func(tx store.Tx) error {
			dev := tx.GetDevice(mac)
			if dev == nil {
				return errors.Wrapf(model.ErrNotFound, "device %s", mac)
			}
			if upd.KernelSet != nil {
				if err := checkKernelSet(tx, *upd.KernelSet); err != nil {
					return err
				}
			}
			if upd.DeviceType != nil && dev.ImageID != "" {
				if img := tx.GetImage(dev.ImageID); img != nil &&
					img.DeviceType != *upd.DeviceType {
					return errors.Wrapf(model.ErrTypeMismatch,
						"device has %s image %s", img.DeviceType, img.ID)
				}
			}
			if changed = upd.Apply(dev); !changed {
				return nil
			}
			dev.UpdatedAt = a.clock.Now()
			return tx.PutDevice(*dev)
		})
	if err != nil {
		return nil, err
	}
	if changed {
		a.publish(ctx, model.Event{Kind: model.EventDeviceUpdated, MAC: mac})
		a.reconcile(ctx, mac)
	}
	return a.GetDevice(ctx, mac)
}

// DeleteDevice removes a device, releasing its image
func (a *app) DeleteDevice(ctx context.Context, mac string) error {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	var imageID string
	err = a.store.Update(ctx,
		[]store.Collection{store.Devices, store.Images},
		func(tx store.Tx) error {
			dev := tx.GetDevice(mac)
			if dev == nil {
				return errors.Wrapf(model.ErrNotFound, "device %s", mac)
			}
			imageID = dev.ImageID
			if img := tx.GetImage(imageID); img != nil && img.AssignedTo == mac {
				img.AssignedTo = ""
				if err := tx.PutImage(*img); err != nil {
					return err
				}
			}
			return tx.DeleteDevice(mac)
		})
	if err != nil {
		return err
	}
	if imageID != "" {
		if err := a.reconciler.Detach(ctx, imageID); err != nil {
			log.FromContext(ctx).Errorf("failed to detach image %s: %v", imageID, err)
		}
		a.publish(ctx, model.Event{Kind: model.EventImageUnlinked, MAC: mac, ImageID: imageID})
	}
	a.publish(ctx, model.Event{Kind: model.EventDeviceDeleted, MAC: mac})
	a.reconcile(ctx, mac)
	return nil
}

// GetDevice returns a device
func (a *app) GetDevice(ctx context.Context, mac string) (*model.Device, error) {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	var dev *model.Device
	err = a.store.View(ctx, func(tx store.Tx) error {
		dev = tx.GetDevice(mac)
		return nil
	})
	if err != nil {
		return nil, err
	} else if dev == nil {
		return nil, errors.Wrapf(model.ErrNotFound, "device %s", mac)
	}
	return dev, nil
}

// ListDevices returns every registered device sorted by MAC
func (a *app) ListDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	err := a.store.View(ctx, func(tx store.Tx) error {
		devices = tx.ListDevices()
		return nil
	})
	return devices, err
}

// ListUnknownDevices returns the MACs that checked in unregistered
func (a *app) ListUnknownDevices(ctx context.Context) ([]model.UnknownDevice, error) {
	var unknown []model.UnknownDevice
	err := a.store.View(ctx, func(tx store.Tx) error {
		unknown = tx.ListUnknownDevices()
		return nil
	})
	return unknown, err
}
