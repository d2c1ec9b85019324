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
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/client/iscsi"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
)

const driftReasonSep = "; "

type registry struct {
	devices []model.Device
	images  []model.Image
}

func (r *reconciler) snapshot(ctx context.Context) (registry, error) {
	var reg registry
	err := r.store.View(ctx, func(tx store.Tx) error {
		reg.devices = tx.ListDevices()
		reg.images = tx.ListImages()
		return nil
	})
	return reg, err
}

func (r *reconciler) listTargets(ctx context.Context) ([]iscsi.Target, error) {
	var targets []iscsi.Target
	err := r.retry(ctx, "list", func() (err error) {
		targets, err = r.iscsi.ListTargets(ctx)
		return err
	})
	return targets, errors.Wrap(err, "failed to list targets")
}

// detect compares images with the live targets. Images being copied are
// skipped. Targets carrying our prefix without an image row are orphans.
func (r *reconciler) detect(images []model.Image, targets []iscsi.Target) []model.DriftFinding {
	prefix := r.conf.Render.IQNPrefix
	var findings []model.DriftFinding
	known := make(map[string]bool, len(images))
	for _, img := range images {
		known[render.TargetIQN(prefix, img.ID)] = true
		if img.Status == model.ImageStatusCopying {
			continue
		}
		add := func(reason string) {
			findings = append(findings, model.DriftFinding{
				ImageID: img.ID,
				MAC:     img.AssignedTo,
				Reason:  reason,
			})
		}
		if _, err := os.Stat(BackingPath(r.conf.ImagesDir, img)); os.IsNotExist(err) {
			add(model.DriftMissingBackingFile)
		}
		t := iscsi.FindTarget(targets, render.TargetIQN(prefix, img.ID))
		switch {
		case img.AssignedTo == "" && t != nil:
			add(model.DriftOrphanTarget)
		case img.AssignedTo != "" && t == nil:
			add(model.DriftMissingTarget)
		case img.AssignedTo != "" &&
			!sameInitiators(*t, render.InitiatorIQN(prefix, img.AssignedTo)):
			add(model.DriftInitiatorMismatch)
		}
	}
	for _, t := range targets {
		if known[t.IQN] || !strings.HasPrefix(t.IQN, prefix+":") {
			continue
		}
		findings = append(findings, model.DriftFinding{
			ImageID: strings.TrimPrefix(t.IQN, prefix+":"),
			Reason:  model.DriftOrphanTarget,
		})
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].ImageID < findings[j].ImageID
	})
	return findings
}

// recordDrift stores the findings on the given images and clears drift of
// images without findings.
func (r *reconciler) recordDrift(
	ctx context.Context,
	images []model.Image,
	findings []model.DriftFinding,
) error {
	reasons := map[string][]string{}
	for _, f := range findings {
		reasons[f.ImageID] = append(reasons[f.ImageID], f.Reason)
	}
	return r.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
		for _, listed := range images {
			img := tx.GetImage(listed.ID)
			if img == nil || img.Status == model.ImageStatusCopying {
				continue
			}
			status, reason := model.ImageStatusReady, ""
			if rs := reasons[img.ID]; len(rs) > 0 {
				status, reason = model.ImageStatusDrift, strings.Join(rs, driftReasonSep)
			}
			if img.Status == status && img.DriftReason == reason {
				continue
			}
			img.Status, img.DriftReason = status, reason
			if err := tx.PutImage(*img); err != nil {
				return err
			}
		}
		return nil
	})
}

// Check reports the drift of every image without touching targets,
// artifacts or registry markers.
func (r *reconciler) Check(ctx context.Context) (*model.SweepReport, error) {
	targets, err := r.listTargets(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	findings := r.detect(reg.images, targets)
	if findings == nil {
		findings = []model.DriftFinding{}
	}
	return &model.SweepReport{
		Devices:  len(reg.devices),
		Images:   len(reg.images),
		Findings: findings,
	}, nil
}

// Sweep detects drift of every image and reconciles every device
func (r *reconciler) Sweep(ctx context.Context) (*model.SweepReport, error) {
	l := log.FromContext(ctx)
	targets, err := r.listTargets(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	findings := r.detect(reg.images, targets)
	if err := r.recordDrift(ctx, reg.images, findings); err != nil {
		return nil, err
	}
	for _, f := range findings {
		r.publish(ctx, model.Event{
			Kind:    model.EventDrift,
			MAC:     f.MAC,
			ImageID: f.ImageID,
			Details: f.Reason,
		})
	}

	for _, dev := range reg.devices {
		if _, err := r.Reconcile(ctx, dev.MAC); err != nil {
			l.Errorf("sweep: reconcile %s: %v", dev.MAC, err)
		}
	}
	if err := r.removeStaleArtifacts(ctx, reg.devices); err != nil {
		return nil, err
	}
	if err := r.writeDefaultMenu(ctx); err != nil {
		return nil, err
	}
	if findings == nil {
		findings = []model.DriftFinding{}
	}
	return &model.SweepReport{
		Devices:  len(reg.devices),
		Images:   len(reg.images),
		Findings: findings,
	}, nil
}

// removeStaleArtifacts deletes artifacts of MACs that are not registered
func (r *reconciler) removeStaleArtifacts(ctx context.Context, devices []model.Device) error {
	registered := make(map[string]bool, len(devices))
	for _, d := range devices {
		registered[model.MACDashed(d.MAC)] = true
	}
	var stale []string
	for _, t := range model.DeviceTypes {
		entries, err := os.ReadDir(filepath.Join(r.conf.TFTPDir, string(t)))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to list artifacts")
		}
		for _, e := range entries {
			if e.IsDir() && !registered[e.Name()] {
				stale = append(stale, filepath.Join(r.conf.TFTPDir, string(t), e.Name()))
			}
		}
	}
	entries, err := os.ReadDir(filepath.Join(r.conf.HTTPDir, menusDir))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to list menus")
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".ipxe")
		if e.Name() == defaultMenuName || name == e.Name() || registered[name] {
			continue
		}
		stale = append(stale, filepath.Join(r.conf.HTTPDir, menusDir, e.Name()))
	}
	for _, p := range stale {
		log.FromContext(ctx).Infof("removing stale artifact %s", p)
		if _, err := removeIfExists(p); err != nil {
			return err
		}
	}
	return nil
}

func scopeImages(images []model.Image, imageID string) []model.Image {
	if imageID == "" {
		return images
	}
	for _, img := range images {
		if img.ID == imageID {
			return []model.Image{img}
		}
	}
	return nil
}

func scopeFindings(findings []model.DriftFinding, imageID string) []model.DriftFinding {
	if imageID == "" {
		return findings
	}
	var out []model.DriftFinding
	for _, f := range findings {
		if f.ImageID == imageID {
			out = append(out, f)
		}
	}
	return out
}

// Repair fixes the target drift of one image, or of all images when
// imageID is empty. Missing backing files cannot be repaired.
func (r *reconciler) Repair(ctx context.Context, imageID string) (*model.RepairReport, error) {
	l := log.FromContext(ctx)
	targets, err := r.listTargets(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := r.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	images := scopeImages(reg.images, imageID)
	findings := scopeFindings(r.detect(reg.images, targets), imageID)
	if imageID != "" && len(images) == 0 && len(findings) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "image %s", imageID)
	}

	affected := map[string]bool{}
	for _, f := range findings {
		if f.MAC != "" {
			affected[f.MAC] = true
		}
		var err error
		switch f.Reason {
		case model.DriftOrphanTarget:
			err = r.retry(ctx, "detach", func() error {
				return r.deleteTarget(ctx, render.TargetIQN(r.conf.Render.IQNPrefix, f.ImageID))
			})
			if err == nil {
				err = r.bindings.Delete(f.ImageID)
			}
		case model.DriftMissingTarget, model.DriftInitiatorMismatch:
			err = r.Attach(ctx, f.MAC, f.ImageID)
		}
		if err != nil {
			l.Errorf("repair of image %s (%s) failed: %v", f.ImageID, f.Reason, err)
		}
	}

	if targets, err = r.listTargets(ctx); err != nil {
		return nil, err
	}
	if reg, err = r.snapshot(ctx); err != nil {
		return nil, err
	}
	images = scopeImages(reg.images, imageID)
	remaining := scopeFindings(r.detect(reg.images, targets), imageID)
	if err := r.recordDrift(ctx, images, remaining); err != nil {
		return nil, err
	}
	for _, img := range images {
		if img.AssignedTo != "" {
			affected[img.AssignedTo] = true
		}
	}
	macs := make([]string, 0, len(affected))
	for mac := range affected {
		macs = append(macs, mac)
	}
	sort.Strings(macs)
	for _, mac := range macs {
		if _, err := r.Reconcile(ctx, mac); err != nil {
			l.Errorf("repair: reconcile %s: %v", mac, err)
		}
	}

	report := &model.RepairReport{
		Repaired:  []model.DriftFinding{},
		Remaining: []model.DriftFinding{},
	}
	left := map[model.DriftFinding]bool{}
	for _, f := range remaining {
		left[f] = true
		report.Remaining = append(report.Remaining, f)
	}
	for _, f := range findings {
		if !left[f] {
			report.Repaired = append(report.Repaired, f)
		}
	}
	return report, nil
}
