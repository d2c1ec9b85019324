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

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/pkg/errors"
)

// BootAction is what a checked-in client should do next
type BootAction string

// Boot actions returned by the check-in
const (
	BootActionShowMenu    BootAction = "show_menu"
	BootActionBootDefault BootAction = "boot_default"
	BootActionBootImage   BootAction = "boot_image"
)

// Check-in messages
const (
	MessageUnknownDevice  = "Unknown device. Please register or select boot option."
	MessageDeviceDisabled = "device disabled"
)

// CheckInRequest is the identity a booting client declares
type CheckInRequest struct {
	MAC        string     `form:"mac"`
	DeviceType DeviceType `form:"device_type"`
	IP         string     `form:"ip"`
}

// CheckInResult is the boot decision for a check-in
type CheckInResult struct {
	Action     BootAction `json:"action"`
	DeviceType DeviceType `json:"device_type,omitempty"`
	Message    string     `json:"message,omitempty"`
	ImageID    string     `json:"image_id,omitempty"`
	ImagePath  string     `json:"image_path,omitempty"`
	KernelSet  string     `json:"kernel_set,omitempty"`
}

// NormalizeIP returns a client reported address in canonical form. The
// address ends up in boot scripts, so anything but a bare IPv4 or IPv6
// address is a ValidationError. Empty stays empty.
func NormalizeIP(ip string) (string, error) {
	if ip == "" {
		return "", nil
	}
	if err := validation.Validate(ip, is.IP); err != nil {
		return "", NewValidationError(errors.Wrapf(err, "ip %q", ip))
	}
	return net.ParseIP(ip).String(), nil
}
