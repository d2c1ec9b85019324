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

package model

import (
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
)

// DeviceType is the hardware family of a netbooting client
type DeviceType string

// Values for the device type attribute
const (
	DeviceTypeRaspi   DeviceType = "raspi"
	DeviceTypeX86     DeviceType = "x86"
	DeviceTypeX64     DeviceType = "x64"
	DeviceTypeUnknown DeviceType = "unknown"
)

// DeviceTypes lists the device types a Device or Image may carry
var DeviceTypes = []DeviceType{DeviceTypeRaspi, DeviceTypeX86, DeviceTypeX64}

var deviceTypeRule = validation.In(
	DeviceTypeRaspi, DeviceTypeX86, DeviceTypeX64,
).Error("must be one of raspi, x86, x64")

// Valid reports whether t is one of the registrable device types
func (t DeviceType) Valid() bool {
	for _, known := range DeviceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SyncStatus is the reconciliation state of a device's artifacts
type SyncStatus string

// Values for the device sync status attribute
const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusDrift   SyncStatus = "drift"
)

// Device represents a registered netboot client
type Device struct {
	MAC        string     `json:"mac"`
	DeviceType DeviceType `json:"device_type"`
	Name       string     `json:"name"`
	Enabled    bool       `json:"enabled"`
	// ImageID is only written by the image assignment operations.
	ImageID string `json:"image_id,omitempty"`
	// KernelSet names the kernel set used for booting; empty follows the
	// default kernel set.
	KernelSet string    `json:"kernel_set,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SyncStatus SyncStatus `json:"sync_status,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// ArtifactKey is the part of a device its boot artifacts derive from
type ArtifactKey struct {
	ImageID    string
	KernelSet  string
	Enabled    bool
	DeviceType DeviceType
}

// ArtifactKey returns the tuple the device's artifacts are a function of
func (d Device) ArtifactKey() ArtifactKey {
	return ArtifactKey{
		ImageID:    d.ImageID,
		KernelSet:  d.KernelSet,
		Enabled:    d.Enabled,
		DeviceType: d.DeviceType,
	}
}

// DeviceRegistration is the payload registering a new device
type DeviceRegistration struct {
	MAC        string     `json:"mac"`
	DeviceType DeviceType `json:"device_type"`
	Name       string     `json:"name"`
	Enabled    *bool      `json:"enabled"`
	KernelSet  string     `json:"kernel_set"`
}

// Validate validates the registration
func (r DeviceRegistration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.MAC, validation.Required, is.MAC, validation.By(eui48)),
		validation.Field(&r.DeviceType, validation.Required, deviceTypeRule),
		validation.Field(&r.Name, validation.Length(0, 128)),
		validation.Field(&r.KernelSet, validation.Match(nameRegexp)),
	)
}

// DeviceUpdate carries the device fields an update may change. Nil fields
// are left untouched.
type DeviceUpdate struct {
	Name       *string     `json:"name"`
	Enabled    *bool       `json:"enabled"`
	KernelSet  *string     `json:"kernel_set"`
	DeviceType *DeviceType `json:"device_type"`
}

// Validate validates the update
func (u DeviceUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Name, validation.NilOrNotEmpty, validation.Length(0, 128)),
		validation.Field(&u.KernelSet, validation.Match(nameRegexp)),
		validation.Field(&u.DeviceType, validation.NilOrNotEmpty, deviceTypeRule),
	)
}

// Apply copies the set fields onto d and reports whether anything changed
func (u DeviceUpdate) Apply(d *Device) bool {
	before := *d
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Enabled != nil {
		d.Enabled = *u.Enabled
	}
	if u.KernelSet != nil {
		d.KernelSet = *u.KernelSet
	}
	if u.DeviceType != nil {
		d.DeviceType = *u.DeviceType
	}
	return before.Name != d.Name || before.ArtifactKey() != d.ArtifactKey()
}

// UnknownDeviceStatusPending is the status of an unregistered MAC seen at boot
const UnknownDeviceStatusPending = "pending"

// UnknownDevice is a MAC that checked in without being registered
type UnknownDevice struct {
	MAC        string     `json:"mac"`
	DeviceType DeviceType `json:"device_type,omitempty"`
	BootTime   time.Time  `json:"boot_time"`
	Status     string     `json:"status"`
	IP         string     `json:"ip,omitempty"`
	BootCount  int        `json:"boot_count"`
}

func eui48(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := NormalizeMAC(s); err != nil {
		return errors.New("must be a 48-bit MAC address")
	}
	return nil
}

// NormalizeMAC returns mac in canonical lowercase colon-hex form. Colon,
// dash and dot separated notations are accepted.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", NewValidationError(errors.Wrapf(err, "mac %q", mac))
	}
	if len(hw) != 6 {
		return "", NewValidationError(errors.Errorf("mac %q: not a 48-bit address", mac))
	}
	return hw.String(), nil
}

// MACDashed renders a canonical MAC with dashes, the form used in file
// names and iSCSI initiator names.
func MACDashed(mac string) string {
	return strings.ReplaceAll(mac, ":", "-")
}
