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

// usesKernelSet reports whether the artifacts of dev may load ks
func usesKernelSet(dev model.Device, ks model.KernelSet) bool {
	if dev.KernelSet == ks.Name {
		return true
	}
	return ks.IsDefault && (dev.KernelSet == "" || dev.ImageID == "" || !dev.Enabled)
}

func (a *app) reconcileKernelSet(ctx context.Context, ks model.KernelSet) {
	devices, err := a.ListDevices(ctx)
	if err != nil {
		log.FromContext(ctx).Errorf(
			"failed to list devices using kernel set %s: %v", ks.Name, err)
		return
	}
	for _, dev := range devices {
		if usesKernelSet(dev, ks) {
			a.reconcile(ctx, dev.MAC)
		}
	}
}

// PutKernelSet creates or replaces a kernel set. Setting IsDefault makes it
// the default; an existing default stays the default.
func (a *app) PutKernelSet(ctx context.Context, ks model.KernelSet) (*model.KernelSet, error) {
	if err := ks.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	err := a.store.Update(ctx, []store.Collection{store.KernelSets}, func(tx store.Tx) error {
		if cur := tx.GetKernelSet(ks.Name); cur != nil {
			ks.IsDefault = ks.IsDefault || cur.IsDefault
		}
		if ks.IsDefault {
			if err := clearDefault(tx, ks.Name); err != nil {
				return err
			}
		}
		return tx.PutKernelSet(ks)
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, model.Event{Kind: model.EventKernelSetChanged, Details: ks.Name})
	a.reconcileKernelSet(ctx, ks)
	return &ks, nil
}

func clearDefault(tx store.Tx, keep string) error {
	for _, other := range tx.ListKernelSets() {
		if other.IsDefault && other.Name != keep {
			other.IsDefault = false
			if err := tx.PutKernelSet(other); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetDefaultKernelSet makes name the only default kernel set
func (a *app) SetDefaultKernelSet(ctx context.Context, name string) error {
	var ks model.KernelSet
	err := a.store.Update(ctx, []store.Collection{store.KernelSets}, func(tx store.Tx) error {
		cur := tx.GetKernelSet(name)
		if cur == nil {
			return errors.Wrapf(model.ErrNotFound, "kernel set %s", name)
		}
		if err := clearDefault(tx, name); err != nil {
			return err
		}
		cur.IsDefault = true
		ks = *cur
		return tx.PutKernelSet(ks)
	})
	if err != nil {
		return err
	}
	a.publish(ctx, model.Event{Kind: model.EventKernelSetChanged, Details: name})
	a.reconcileKernelSet(ctx, ks)
	return nil
}

// DeleteKernelSet removes a kernel set no device refers to. The default
// kernel set cannot be deleted.
func (a *app) DeleteKernelSet(ctx context.Context, name string) error {
	return a.store.Update(ctx,
		[]store.Collection{store.Devices, store.KernelSets},
		func(tx store.Tx) error {
			cur := tx.GetKernelSet(name)
			if cur == nil {
				return errors.Wrapf(model.ErrNotFound, "kernel set %s", name)
			}
			if cur.IsDefault {
				return errors.Wrapf(model.ErrConflict, "kernel set %s is the default", name)
			}
			for _, dev := range tx.ListDevices() {
				if dev.KernelSet == name {
					return errors.Wrapf(model.ErrConflict,
						"kernel set %s is used by %s", name, dev.MAC)
				}
			}
			return tx.DeleteKernelSet(name)
		})
}

// ListKernelSets returns every kernel set sorted by name
func (a *app) ListKernelSets(ctx context.Context) ([]model.KernelSet, error) {
	var sets []model.KernelSet
	err := a.store.View(ctx, func(tx store.Tx) error {
		sets = tx.ListKernelSets()
		return nil
	})
	return sets, err
}
