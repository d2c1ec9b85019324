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

package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
	"github.com/netboot-orchestrator/netboot/store/file"
)

const (
	menusDir        = "menus"
	defaultMenuName = "default.ipxe"
)

// ConfigDir returns the TFTP directory of a device's config.txt/cmdline.txt
func ConfigDir(tftpDir string, deviceType model.DeviceType, mac string) string {
	return filepath.Join(tftpDir, string(deviceType), model.MACDashed(mac))
}

// MenuPath returns the path of a device's boot menu
func MenuPath(httpDir, mac string) string {
	return filepath.Join(httpDir, menusDir, model.MACDashed(mac)+".ipxe")
}

// DefaultMenuPath returns the path of the menu served to unknown clients
func DefaultMenuPath(httpDir string) string {
	return filepath.Join(httpDir, menusDir, defaultMenuName)
}

// writeIfChanged replaces path with data unless it already holds data
func writeIfChanged(path string, data []byte) (bool, error) {
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := file.WriteFileAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}

func removeIfExists(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(path); err != nil {
		return false, errors.Wrapf(err, "failed to remove %s", path)
	}
	return true, nil
}

type deviceState struct {
	device     *model.Device
	image      *model.Image
	kernelSets []model.KernelSet
}

func (r *reconciler) loadDevice(ctx context.Context, mac string) (deviceState, error) {
	var st deviceState
	err := r.store.View(ctx, func(tx store.Tx) error {
		st.device = tx.GetDevice(mac)
		if st.device != nil && st.device.ImageID != "" {
			st.image = tx.GetImage(st.device.ImageID)
		}
		st.kernelSets = tx.ListKernelSets()
		return nil
	})
	return st, err
}

// Reconcile converges one device and schedules a retry when it could not
func (r *reconciler) Reconcile(ctx context.Context, mac string) (*model.ReconcileReport, error) {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}
	report, err := r.reconcileDevice(ctx, mac)
	switch {
	case err != nil:
		r.reconciles.WithLabelValues("error").Inc()
		r.scheduleRetry(ctx, mac)
		return nil, err
	case report.Status == model.SyncStatusPending:
		r.scheduleRetry(ctx, mac)
	default:
		r.clearRetry(mac)
	}
	r.reconciles.WithLabelValues(string(report.Status)).Inc()
	return report, nil
}

func (r *reconciler) reconcileDevice(ctx context.Context, mac string) (*model.ReconcileReport, error) {
	unlock := r.lock(mac)
	defer unlock()
	l := log.FromContext(ctx)

	st, err := r.loadDevice(ctx, mac)
	if err != nil {
		return nil, err
	}
	report := &model.ReconcileReport{MAC: mac}
	if st.device == nil {
		return report, r.removeArtifacts(report, mac, "")
	}
	dev := *st.device

	status := model.SyncStatusSynced
	var warnings []string
	warn := func(s model.SyncStatus, format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		l.Warnf("device %s: %s", mac, msg)
		warnings = append(warnings, msg)
		if status != model.SyncStatusPending {
			status = s
		}
	}

	cfg, err := render.RenderPerMacConfig(dev, st.image, st.kernelSets, r.conf.Render)
	if err != nil {
		warn(model.SyncStatusPending, "%v", err)
	} else {
		dir := ConfigDir(r.conf.TFTPDir, dev.DeviceType, mac)
		for name, data := range map[string][]byte{
			render.ConfigTxt:  cfg.Config,
			render.CmdlineTxt: cfg.Cmdline,
		} {
			p := filepath.Join(dir, name)
			changed, err := writeIfChanged(p, data)
			if err != nil {
				return nil, err
			}
			if changed {
				report.Written = append(report.Written, p)
			}
		}
	}

	script := render.BuildBootScript(render.BootInput{
		MAC:     mac,
		Device:  &dev,
		Image:   st.image,
		Catalog: r.loadCatalog(ctx),
		Notice:  deviceNotice(dev),
	}, r.conf.Render)
	menu := MenuPath(r.conf.HTTPDir, mac)
	changed, err := writeIfChanged(menu, []byte(script.Render()))
	if err != nil {
		return nil, err
	}
	if changed {
		report.Written = append(report.Written, menu)
	}
	if err := r.removeArtifacts(report, mac, dev.DeviceType); err != nil {
		return nil, err
	}

	if render.ImageBoot(dev, st.image) {
		if st.image.Status == model.ImageStatusDrift {
			warn(model.SyncStatusDrift, "image %s drift: %s", st.image.ID, st.image.DriftReason)
		}
		tb, err := r.bindings.Get(st.image.ID)
		if err != nil {
			return nil, err
		}
		expected := render.InitiatorIQN(r.conf.Render.IQNPrefix, mac)
		if tb == nil {
			warn(model.SyncStatusDrift, "image %s has no target binding", st.image.ID)
		} else if tb.InitiatorIQN != expected || tb.MAC != mac {
			warn(model.SyncStatusDrift, "target of image %s is bound to %s", st.image.ID, tb.InitiatorIQN)
		}
	}

	report.Status = status
	report.Warnings = warnings
	if err := r.markDevice(ctx, mac, status, warnings); err != nil {
		return nil, err
	}
	if len(report.Written) > 0 || len(report.Removed) > 0 {
		r.publish(ctx, model.Event{Kind: model.EventReconciled, MAC: mac})
	}
	return report, nil
}

func deviceNotice(dev model.Device) string {
	if !dev.Enabled {
		return "Device disabled"
	}
	if dev.Name != "" {
		return "Device: " + dev.Name
	}
	return ""
}

// removeArtifacts deletes the device's artifacts under every device type
// directory except keep; an empty keep also removes the boot menu.
func (r *reconciler) removeArtifacts(report *model.ReconcileReport, mac string, keep model.DeviceType) error {
	paths := []string{}
	for _, t := range model.DeviceTypes {
		if t != keep {
			paths = append(paths, ConfigDir(r.conf.TFTPDir, t, mac))
		}
	}
	if keep == "" {
		paths = append(paths, MenuPath(r.conf.HTTPDir, mac))
	}
	for _, p := range paths {
		removed, err := removeIfExists(p)
		if err != nil {
			return err
		}
		if removed {
			report.Removed = append(report.Removed, p)
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (r *reconciler) markDevice(
	ctx context.Context,
	mac string,
	status model.SyncStatus,
	warnings []string,
) error {
	return r.store.Update(ctx, []store.Collection{store.Devices}, func(tx store.Tx) error {
		dev := tx.GetDevice(mac)
		if dev == nil || (dev.SyncStatus == status && equalStrings(dev.Warnings, warnings)) {
			return nil
		}
		dev.SyncStatus = status
		dev.Warnings = warnings
		return tx.PutDevice(*dev)
	})
}

func (r *reconciler) markImage(ctx context.Context, id string, status model.ImageStatus, reason string) error {
	return r.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
		img := tx.GetImage(id)
		if img == nil || img.Status == model.ImageStatusCopying ||
			(img.Status == status && img.DriftReason == reason) {
			return nil
		}
		img.Status = status
		img.DriftReason = reason
		return tx.PutImage(*img)
	})
}

func (r *reconciler) writeDefaultMenu(ctx context.Context) error {
	script := render.BuildBootScript(render.BootInput{
		Catalog: r.loadCatalog(ctx),
	}, r.conf.Render)
	_, err := writeIfChanged(DefaultMenuPath(r.conf.HTTPDir), []byte(script.Render()))
	return err
}

// loadCatalog returns the installer catalog; a broken catalog renders an
// empty menu rather than blocking boot artifacts.
func (r *reconciler) loadCatalog(ctx context.Context) *catalog.Catalog {
	if r.catalog == nil {
		return nil
	}
	c, err := r.catalog.Load()
	if err != nil {
		log.FromContext(ctx).Warnf("failed to load installer catalog: %v", err)
		return nil
	}
	return c
}
