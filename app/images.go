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
	"io"
	"os"
	"path/filepath"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
	"github.com/netboot-orchestrator/netboot/reconcile"
	"github.com/netboot-orchestrator/netboot/store"
)

const gib = 1 << 30

func (a *app) backingPath(id string) string {
	return filepath.Join(a.ImagesDir, id+".img")
}

// allocateSparse creates a sparse file of size bytes; it fails if path
// exists.
func allocateSparse(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create images directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return errors.Wrapf(model.ErrConflict, "backing file %s exists", path)
	} else if err != nil {
		return errors.Wrap(err, "failed to create backing file")
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to size backing file")
	}
	return errors.Wrap(f.Close(), "failed to create backing file")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source backing file")
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return errors.Wrapf(model.ErrConflict, "backing file %s exists", dst)
	} else if err != nil {
		return errors.Wrap(err, "failed to create backing file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrap(err, "failed to copy backing file")
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return errors.Wrap(err, "failed to sync backing file")
	}
	return errors.Wrap(out.Close(), "failed to copy backing file")
}

// reserveImage stores the image returned by build with status copying; it
// fails with ErrConflict when id is taken.
func (a *app) reserveImage(
	ctx context.Context,
	id string,
	build func(tx store.Tx) (model.Image, error),
) (model.Image, error) {
	var img model.Image
	err := a.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
		if tx.GetImage(id) != nil {
			return errors.Wrapf(model.ErrConflict, "image %s already exists", id)
		}
		var err error
		if img, err = build(tx); err != nil {
			return err
		}
		img.Status = model.ImageStatusCopying
		return tx.PutImage(img)
	})
	return img, err
}

// finishImage marks a reserved image ready, or drops the reservation and
// its partial backing file when cause is not nil.
func (a *app) finishImage(ctx context.Context, img model.Image, cause error) error {
	if cause != nil {
		if !errors.Is(cause, model.ErrConflict) {
			_ = os.Remove(img.BackingPath)
		}
		err := a.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
			return tx.DeleteImage(img.ID)
		})
		if err != nil {
			log.FromContext(ctx).Errorf("failed to release image %s: %v", img.ID, err)
		}
		return cause
	}
	return a.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
		cur := tx.GetImage(img.ID)
		if cur == nil {
			return errors.Wrapf(model.ErrNotFound, "image %s", img.ID)
		}
		cur.Status = model.ImageStatusReady
		return tx.PutImage(*cur)
	})
}

// CreateImage registers an image and allocates its sparse backing file
func (a *app) CreateImage(ctx context.Context, n model.NewImage) (*model.Image, error) {
	if err := n.Validate(); err != nil {
		return nil, model.NewValidationError(err)
	}
	img, err := a.reserveImage(ctx, n.ID, func(store.Tx) (model.Image, error) {
		img := model.Image{
			ID:          n.ID,
			Name:        n.Name,
			SizeGB:      n.SizeGB,
			DeviceType:  n.DeviceType,
			CreatedAt:   a.clock.Now(),
			BackingPath: a.backingPath(n.ID),
		}
		if img.Name == "" {
			img.Name = img.ID
		}
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	err = a.finishImage(ctx, img, allocateSparse(img.BackingPath, int64(img.SizeGB*gib)))
	if err != nil {
		return nil, err
	}
	log.FromContext(ctx).Infof("created %g GiB image %s", img.SizeGB, img.ID)
	a.publish(ctx, model.Event{Kind: model.EventImageCreated, ImageID: img.ID})
	return a.GetImage(ctx, img.ID)
}

// CopyImage clones an image into a new unassigned image
func (a *app) CopyImage(ctx context.Context, id, destID string) (*model.Image, error) {
	if err := model.ValidateImageID(id); err != nil {
		return nil, err
	}
	if err := model.ValidateImageID(destID); err != nil {
		return nil, err
	}
	var src model.Image
	dest, err := a.reserveImage(ctx, destID, func(tx store.Tx) (model.Image, error) {
		img := tx.GetImage(id)
		if img == nil {
			return model.Image{}, errors.Wrapf(model.ErrNotFound, "image %s", id)
		}
		if img.Status == model.ImageStatusCopying {
			return model.Image{}, errors.Wrapf(model.ErrConflict, "image %s is being copied", id)
		}
		src = *img
		return model.Image{
			ID:          destID,
			Name:        img.Name,
			SizeGB:      img.SizeGB,
			DeviceType:  img.DeviceType,
			CreatedAt:   a.clock.Now(),
			BackingPath: a.backingPath(destID),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	err = copyFile(reconcile.BackingPath(a.ImagesDir, src), dest.BackingPath)
	if err = a.finishImage(ctx, dest, err); err != nil {
		return nil, err
	}
	log.FromContext(ctx).Infof("copied image %s to %s", id, destID)
	a.publish(ctx, model.Event{Kind: model.EventImageCopied, ImageID: destID, Details: id})
	return a.GetImage(ctx, destID)
}

// DeleteImage removes an unassigned image, its target and its backing file
func (a *app) DeleteImage(ctx context.Context, id string) error {
	if err := model.ValidateImageID(id); err != nil {
		return err
	}
	var img model.Image
	err := a.store.Update(ctx, []store.Collection{store.Images}, func(tx store.Tx) error {
		cur := tx.GetImage(id)
		if cur == nil {
			return errors.Wrapf(model.ErrNotFound, "image %s", id)
		}
		if cur.AssignedTo != "" {
			return errors.Wrapf(model.ErrConflict, "image %s is assigned to %s", id, cur.AssignedTo)
		}
		if cur.Status == model.ImageStatusCopying {
			return errors.Wrapf(model.ErrConflict, "image %s is being copied", id)
		}
		img = *cur
		return tx.DeleteImage(id)
	})
	if err != nil {
		return err
	}
	if err := a.reconciler.Detach(ctx, id); err != nil {
		log.FromContext(ctx).Errorf("failed to detach deleted image %s: %v", id, err)
	}
	path := reconcile.BackingPath(a.ImagesDir, img)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.FromContext(ctx).Errorf("failed to remove backing file %s: %v", path, err)
	}
	a.publish(ctx, model.Event{Kind: model.EventImageDeleted, ImageID: id})
	return nil
}

// GetImage returns an image
func (a *app) GetImage(ctx context.Context, id string) (*model.Image, error) {
	var img *model.Image
	err := a.store.View(ctx, func(tx store.Tx) error {
		img = tx.GetImage(id)
		return nil
	})
	if err != nil {
		return nil, err
	} else if img == nil {
		return nil, errors.Wrapf(model.ErrNotFound, "image %s", id)
	}
	return img, nil
}

// ListImages returns every image sorted by id
func (a *app) ListImages(ctx context.Context) ([]model.Image, error) {
	var images []model.Image
	err := a.store.View(ctx, func(tx store.Tx) error {
		images = tx.ListImages()
		return nil
	})
	return images, err
}

// LinkImage assigns an image to a device of the same type and exports it
func (a *app) LinkImage(ctx context.Context, id, mac string) error {
	if err := model.ValidateImageID(id); err != nil {
		return err
	}
	mac, err := model.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	err = a.store.Update(ctx,
		[]store.Collection{store.Devices, store.Images},
		func(tx store.Tx) error {
			img := tx.GetImage(id)
			if img == nil {
				return errors.Wrapf(model.ErrNotFound, "image %s", id)
			}
			dev := tx.GetDevice(mac)
			if dev == nil {
				return errors.Wrapf(model.ErrNotFound, "device %s", mac)
			}
			switch {
			case img.DeviceType != dev.DeviceType:
				return errors.Wrapf(model.ErrTypeMismatch,
					"image %s is %s, device %s is %s", id, img.DeviceType, mac, dev.DeviceType)
			case img.AssignedTo != "":
				return errors.Wrapf(model.ErrConflict,
					"image %s is assigned to %s", id, img.AssignedTo)
			case dev.ImageID != "":
				return errors.Wrapf(model.ErrConflict,
					"device %s already has image %s", mac, dev.ImageID)
			case !img.Linkable():
				return errors.Wrapf(model.ErrConflict, "image %s is %s", id, img.Status)
			}
			// assignment changes leave updated_at alone so that unlink
			// restores both rows exactly
			img.AssignedTo = mac
			dev.ImageID = id
			if err := tx.PutImage(*img); err != nil {
				return err
			}
			return tx.PutDevice(*dev)
		})
	if err != nil {
		return err
	}
	log.FromContext(ctx).Infof("linked image %s to %s", id, mac)
	a.publish(ctx, model.Event{Kind: model.EventImageLinked, MAC: mac, ImageID: id})
	if err := a.reconciler.Attach(ctx, mac, id); err != nil {
		log.FromContext(ctx).Errorf("failed to attach image %s: %v", id, err)
	}
	a.reconcile(ctx, mac)
	return nil
}

// UnlinkImage clears the assignment of an image; unassigned images are
// left as they are.
func (a *app) UnlinkImage(ctx context.Context, id string) error {
	if err := model.ValidateImageID(id); err != nil {
		return err
	}
	var mac string
	err := a.store.Update(ctx,
		[]store.Collection{store.Devices, store.Images},
		func(tx store.Tx) error {
			img := tx.GetImage(id)
			if img == nil {
				return errors.Wrapf(model.ErrNotFound, "image %s", id)
			}
			if mac = img.AssignedTo; mac == "" {
				return nil
			}
			if dev := tx.GetDevice(mac); dev != nil && dev.ImageID == id {
				dev.ImageID = ""
				if err := tx.PutDevice(*dev); err != nil {
					return err
				}
			}
			img.AssignedTo = ""
			return tx.PutImage(*img)
		})
	if err != nil || mac == "" {
		return err
	}
	log.FromContext(ctx).Infof("unlinked image %s from %s", id, mac)
	a.publish(ctx, model.Event{Kind: model.EventImageUnlinked, MAC: mac, ImageID: id})
	if err := a.reconciler.Detach(ctx, id); err != nil {
		log.FromContext(ctx).Errorf("failed to detach image %s: %v", id, err)
	}
	a.reconcile(ctx, mac)
	return nil
}
