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

package render

import (
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/netboot-orchestrator/netboot/model"
)

// Per-device artifact file names
const (
	ConfigTxt  = "config.txt"
	CmdlineTxt = "cmdline.txt"
)

const iscsiPort = "3260"

// PerMacConfig is the bootloader config/cmdline pair of one device
type PerMacConfig struct {
	Config  []byte
	Cmdline []byte
}

// ImageBoot reports whether the device boots its assigned image
func ImageBoot(dev model.Device, img *model.Image) bool {
	return dev.Enabled && img != nil && dev.ImageID != "" &&
		img.ID == dev.ImageID && img.AssignedTo == dev.MAC
}

// RenderPerMacConfig renders config.txt and cmdline.txt for a device. An
// enabled device booting its image uses its own kernel set and an iSCSI
// root; any other device loads the default kernel set in menu mode.
func RenderPerMacConfig(
	dev model.Device,
	img *model.Image,
	kernelSets []model.KernelSet,
	opts Options,
) (PerMacConfig, error) {
	imageBoot := ImageBoot(dev, img)
	setName := ""
	if imageBoot {
		setName = dev.KernelSet
	}
	ks, ok := model.ResolveKernelSet(setName, kernelSets)
	if !ok {
		if setName == "" {
			setName = "(default)"
		}
		return PerMacConfig{}, errors.Wrapf(model.ErrRenderFailure,
			"kernel set %s not found", setName)
	}
	if ks.KernelURL == "" {
		return PerMacConfig{}, errors.Wrapf(model.ErrRenderFailure,
			"kernel set %s has no kernel url", ks.Name)
	}

	cfg := &writer{}
	cfg.line("# netboot: %s (%s)", dev.MAC, ks.Name)
	cfg.line("[all]")
	if dev.DeviceType == model.DeviceTypeRaspi {
		cfg.line("arm_64bit=1")
		cfg.line("enable_uart=1")
	}
	cfg.line("kernel=%s", fileName(ks.KernelURL))
	if ks.InitramfsURL != "" {
		cfg.line("initramfs %s followkernel", fileName(ks.InitramfsURL))
	}

	args := []string{"ip=dhcp"}
	if imageBoot {
		args = append(args,
			"ISCSI_INITIATOR="+InitiatorIQN(opts.IQNPrefix, dev.MAC),
			"ISCSI_TARGET_NAME="+TargetIQN(opts.IQNPrefix, img.ID),
			"ISCSI_TARGET_IP="+opts.BootServerIP,
			"ISCSI_TARGET_PORT="+iscsiPort,
			"root=LABEL=root",
			"rw",
			"rootwait",
		)
	} else {
		args = append(args,
			"netboot.mode=menu",
			"netboot.api="+opts.BootAPIURL,
		)
	}
	if extra := strings.TrimSpace(ASCII(ks.Cmdline)); extra != "" {
		args = append(args, extra)
	}

	return PerMacConfig{
		Config:  []byte(cfg.String()),
		Cmdline: []byte(strings.Join(args, " ") + "\n"),
	}, nil
}

// fileName returns the last path element of a kernel reference, the name
// the TFTP root serves it under.
func fileName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	return path.Base(ref)
}
