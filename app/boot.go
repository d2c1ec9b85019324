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

	"github.com/google/uuid"
	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
)

func (a *app) loadCatalog(ctx context.Context) *catalog.Catalog {
	if a.catalog == nil {
		return nil
	}
	c, err := a.catalog.Load()
	if err != nil {
		log.FromContext(ctx).Warnf("failed to load installer catalog: %v", err)
		return nil
	}
	return c
}

func menuNotice(dev *model.Device) string {
	switch {
	case dev == nil:
		return model.MessageUnknownDevice
	case !dev.Enabled:
		return "Device disabled"
	case dev.Name != "":
		return "Device: " + dev.Name
	}
	return ""
}

// RenderBootMenu renders the iPXE script served to a client. An empty mac
// renders the generic menu.
func (a *app) RenderBootMenu(ctx context.Context, mac, ip string) (string, error) {
	ip, err := model.NormalizeIP(ip)
	if err != nil {
		return "", err
	}
	in := render.BootInput{IP: ip, Catalog: a.loadCatalog(ctx)}
	if mac != "" {
		if mac, err = model.NormalizeMAC(mac); err != nil {
			return "", err
		}
		in.MAC = mac
		err = a.store.View(ctx, func(tx store.Tx) error {
			in.Device = tx.GetDevice(mac)
			if in.Device != nil && in.Device.ImageID != "" {
				in.Image = tx.GetImage(in.Device.ImageID)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		in.Notice = menuNotice(in.Device)
	}
	script := render.BuildBootScript(in, a.Render)
	if mac != "" {
		details := "menu"
		if script.Direct != nil {
			details = "sanboot " + script.Direct.TargetIQN
		}
		a.appendBootLog(ctx, model.BootLogEntry{
			MAC:     mac,
			Event:   model.BootEventMenu,
			Details: details,
			IP:      ip,
		})
	}
	return script.Render(), nil
}

// RenderPerMacConfig renders the config.txt/cmdline.txt pair of a device
func (a *app) RenderPerMacConfig(ctx context.Context, mac string) (*render.PerMacConfig, error) {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	var (
		dev  *model.Device
		img  *model.Image
		sets []model.KernelSet
	)
	err = a.store.View(ctx, func(tx store.Tx) error {
		dev = tx.GetDevice(mac)
		if dev != nil && dev.ImageID != "" {
			img = tx.GetImage(dev.ImageID)
		}
		sets = tx.ListKernelSets()
		return nil
	})
	if err != nil {
		return nil, err
	} else if dev == nil {
		return nil, errors.Wrapf(model.ErrNotFound, "device %s", mac)
	}
	cfg, err := render.RenderPerMacConfig(*dev, img, sets, a.Render)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (a *app) appendBootLog(ctx context.Context, entry model.BootLogEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = a.clock.Now()
	if err := a.bootlog.AppendBootLog(ctx, entry); err != nil {
		log.FromContext(ctx).Errorf("failed to append boot log: %v", err)
	}
}

// RecordBootEvent appends a client reported event to the boot log. The
// install start/complete events open and close telemetry sessions.
func (a *app) RecordBootEvent(ctx context.Context, ev model.BootEvent) error {
	if err := ev.Validate(); err != nil {
		return model.NewValidationError(err)
	}
	mac, err := model.NormalizeMAC(ev.MAC)
	if err != nil {
		return err
	}
	ip, err := model.NormalizeIP(ev.IP)
	if err != nil {
		return err
	}
	entry := model.BootLogEntry{
		ID:        uuid.NewString(),
		MAC:       mac,
		Event:     ev.Event,
		Details:   ev.Details,
		IP:        ip,
		Timestamp: a.clock.Now(),
	}
	if err := a.bootlog.AppendBootLog(ctx, entry); err != nil {
		return err
	}
	if a.sampler != nil {
		switch ev.Event {
		case model.BootEventInstallStart:
			a.sampler.BeginSession(mac)
		case model.BootEventInstallEnd:
			a.sampler.EndSession(mac)
		}
	}
	return nil
}

// ListBootLogs returns boot log entries, newest first
func (a *app) ListBootLogs(
	ctx context.Context,
	filter model.BootLogFilter,
) ([]model.BootLogEntry, error) {
	if filter.MAC != "" {
		mac, err := model.NormalizeMAC(filter.MAC)
		if err != nil {
			return nil, err
		}
		filter.MAC = mac
	}
	if filter.Limit <= 0 {
		filter.Limit = model.DefaultBootLogLimit
	}
	return a.bootlog.ListBootLogs(ctx, filter)
}
