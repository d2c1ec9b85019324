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
	"path/filepath"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/client/iscsi"
	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/render"
	"github.com/netboot-orchestrator/netboot/store"
)

const imageExt = ".img"

// BackingPath returns where the backing file of an image lives
func BackingPath(imagesDir string, img model.Image) string {
	if img.BackingPath != "" {
		return img.BackingPath
	}
	return filepath.Join(imagesDir, img.ID+imageExt)
}

func imageLockKey(id string) string {
	return "image/" + id
}

func (r *reconciler) getImage(ctx context.Context, id string) (*model.Image, error) {
	var img *model.Image
	err := r.store.View(ctx, func(tx store.Tx) error {
		img = tx.GetImage(id)
		return nil
	})
	if err == nil && img == nil {
		err = errors.Wrapf(model.ErrNotFound, "image %s", id)
	}
	return img, err
}

func sameInitiators(t iscsi.Target, initiator string) bool {
	return len(t.Initiators) == 1 && t.Initiators[0] == initiator
}

// Attach exports the backing file of an image to the device's initiator.
// Nothing is exported unless the image is still assigned to mac once the
// image lock is held.
func (r *reconciler) Attach(ctx context.Context, mac, imageID string) error {
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	unlock := r.lock(imageLockKey(imageID))
	defer unlock()

	img, err := r.getImage(ctx, imageID)
	if err != nil {
		return err
	}
	if img.AssignedTo != mac {
		log.FromContext(ctx).Infof("image %s is not assigned to %s, skipping export",
			img.ID, mac)
		return nil
	}
	binding := model.TargetBinding{
		ImageID:      img.ID,
		TargetIQN:    render.TargetIQN(r.conf.Render.IQNPrefix, img.ID),
		BackingPath:  BackingPath(r.conf.ImagesDir, *img),
		InitiatorIQN: render.InitiatorIQN(r.conf.Render.IQNPrefix, mac),
		MAC:          mac,
	}
	err = r.retry(ctx, "attach", func() error {
		targets, err := r.iscsi.ListTargets(ctx)
		if err != nil {
			return err
		}
		if t := iscsi.FindTarget(targets, binding.TargetIQN); t != nil {
			if t.BackingPath == binding.BackingPath && sameInitiators(*t, binding.InitiatorIQN) {
				binding.TID = t.TID
				return nil
			}
			if err := r.iscsi.DeleteTarget(ctx, t.TID); err != nil {
				return err
			}
		}
		binding.TID = iscsi.NextTID(targets)
		return r.iscsi.CreateTarget(ctx, iscsi.Target{
			TID:         binding.TID,
			IQN:         binding.TargetIQN,
			BackingPath: binding.BackingPath,
			Initiators:  []string{binding.InitiatorIQN},
		})
	})
	if err != nil {
		r.targetFailed(ctx, img.ID, mac, model.DriftAttachFailed, err)
		return errors.Wrapf(err, "failed to attach image %s", img.ID)
	}
	binding.UpdatedAt = r.clock.Now()
	if err := r.bindings.Put(binding); err != nil {
		return err
	}
	log.FromContext(ctx).Infof("image %s exported to %s as tid %d",
		img.ID, binding.InitiatorIQN, binding.TID)
	if img.DriftReason == model.DriftAttachFailed {
		return r.markImage(ctx, img.ID, model.ImageStatusReady, "")
	}
	return nil
}

// Detach removes the target of an image. A missing target is not an error.
func (r *reconciler) Detach(ctx context.Context, imageID string) error {
	unlock := r.lock(imageLockKey(imageID))
	defer unlock()

	iqn := render.TargetIQN(r.conf.Render.IQNPrefix, imageID)
	err := r.retry(ctx, "detach", func() error {
		return r.deleteTarget(ctx, iqn)
	})
	if err != nil {
		r.targetFailed(ctx, imageID, "", model.DriftDetachFailed, err)
		return errors.Wrapf(err, "failed to detach image %s", imageID)
	}
	if err := r.bindings.Delete(imageID); err != nil {
		return err
	}
	var img *model.Image
	_ = r.store.View(ctx, func(tx store.Tx) error {
		img = tx.GetImage(imageID)
		return nil
	})
	if img != nil && img.DriftReason == model.DriftDetachFailed {
		return r.markImage(ctx, imageID, model.ImageStatusReady, "")
	}
	return nil
}

func (r *reconciler) deleteTarget(ctx context.Context, iqn string) error {
	targets, err := r.iscsi.ListTargets(ctx)
	if err != nil {
		return err
	}
	if t := iscsi.FindTarget(targets, iqn); t != nil {
		return r.iscsi.DeleteTarget(ctx, t.TID)
	}
	return nil
}

// targetFailed records an exhausted target operation as image drift
func (r *reconciler) targetFailed(ctx context.Context, imageID, mac, reason string, cause error) {
	log.FromContext(ctx).Errorf("image %s: %s: %v", imageID, reason, cause)
	if err := r.markImage(ctx, imageID, model.ImageStatusDrift, reason); err != nil {
		log.FromContext(ctx).Errorf("failed to record drift of image %s: %v", imageID, err)
	}
	r.publish(ctx, model.Event{
		Kind:    model.EventDrift,
		MAC:     mac,
		ImageID: imageID,
		Details: reason,
	})
}
