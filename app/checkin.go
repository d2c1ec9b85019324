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

	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/reconcile"
	"github.com/netboot-orchestrator/netboot/store"
)

func declaredType(t model.DeviceType) model.DeviceType {
	if t.Valid() {
		return t
	}
	return model.DeviceTypeUnknown
}

// CheckIn decides what a booting client does next. Registered devices and
// images are never modified; an unregistered MAC is recorded as unknown.
func (a *app) CheckIn(
	ctx context.Context,
	req model.CheckInRequest,
) (*model.CheckInResult, error) {
	mac, err := model.NormalizeMAC(req.MAC)
	if err != nil {
		return nil, err
	}
	if req.IP, err = model.NormalizeIP(req.IP); err != nil {
		return nil, err
	}
	declared := declaredType(req.DeviceType)

	var (
		dev *model.Device
		img *model.Image
		ks  []model.KernelSet
	)
	err = a.store.View(ctx, func(tx store.Tx) error {
		dev = tx.GetDevice(mac)
		if dev != nil && dev.ImageID != "" {
			img = tx.GetImage(dev.ImageID)
		}
		ks = tx.ListKernelSets()
		return nil
	})
	if err != nil {
		return nil, err
	}

	var result *model.CheckInResult
	if dev == nil {
		result, dev, err = a.checkInUnknown(ctx, mac, declared, req.IP)
		if err != nil {
			return nil, err
		}
		if dev != nil {
			// registered concurrently
			err = a.store.View(ctx, func(tx store.Tx) error {
				if dev.ImageID != "" {
					img = tx.GetImage(dev.ImageID)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if result == nil {
		result = a.decide(*dev, img, ks)
	}

	a.checkins.WithLabelValues(string(result.Action)).Inc()
	a.appendBootLog(ctx, model.BootLogEntry{
		MAC:     mac,
		Event:   model.BootEventCheckIn,
		Details: "device_type=" + string(declared) + " action=" + string(result.Action),
		IP:      req.IP,
	})
	return result, nil
}

// checkInUnknown upserts the unknown device. If the MAC got registered in
// the meantime the device is returned instead of a result.
func (a *app) checkInUnknown(
	ctx context.Context,
	mac string,
	declared model.DeviceType,
	ip string,
) (*model.CheckInResult, *model.Device, error) {
	var (
		dev   *model.Device
		first bool
	)
	now := a.clock.Now()
	err := a.store.Update(ctx,
		[]store.Collection{store.Devices, store.UnknownDevices},
		func(tx store.Tx) error {
			if dev = tx.GetDevice(mac); dev != nil {
				return nil
			}
			unknown := tx.GetUnknownDevice(mac)
			if unknown == nil {
				first = true
				unknown = &model.UnknownDevice{MAC: mac}
			}
			unknown.BootTime = now
			unknown.Status = model.UnknownDeviceStatusPending
			unknown.BootCount++
			if ip != "" {
				unknown.IP = ip
			}
			if declared != model.DeviceTypeUnknown {
				unknown.DeviceType = declared
			}
			return tx.PutUnknownDevice(*unknown)
		})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to record unknown device")
	}
	if dev != nil {
		return nil, dev, nil
	}
	if first {
		a.publish(ctx, model.Event{Kind: model.EventUnknownDevice, MAC: mac})
	}
	return &model.CheckInResult{
		Action:     model.BootActionShowMenu,
		DeviceType: declared,
		Message:    model.MessageUnknownDevice,
	}, nil, nil
}

func (a *app) decide(
	dev model.Device,
	img *model.Image,
	kernelSets []model.KernelSet,
) *model.CheckInResult {
	result := &model.CheckInResult{DeviceType: dev.DeviceType}
	switch {
	case !dev.Enabled:
		result.Action = model.BootActionShowMenu
		result.Message = model.MessageDeviceDisabled

	case dev.ImageID != "" && img != nil:
		result.Action = model.BootActionBootImage
		result.ImageID = img.ID
		result.ImagePath = reconcile.BackingPath(a.ImagesDir, *img)
		result.KernelSet = dev.KernelSet
		if result.KernelSet == "" {
			if ks, ok := model.ResolveKernelSet("", kernelSets); ok {
				result.KernelSet = ks.Name
			}
		}

	case a.NoImagePolicy == NoImageBootDefault:
		result.Action = model.BootActionBootDefault
		if ks, ok := model.ResolveKernelSet("", kernelSets); ok {
			result.KernelSet = ks.Name
		}

	default:
		result.Action = model.BootActionShowMenu
	}
	return result
}
