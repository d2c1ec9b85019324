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
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	imageIDRegexp = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	nameRegexp    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
)

// ImageStatus is the lifecycle state of a disk image
type ImageStatus string

// Values for the image status attribute
const (
	ImageStatusReady   ImageStatus = "ready"
	ImageStatusCopying ImageStatus = "copying"
	ImageStatusDrift   ImageStatus = "drift"
)

// Image is a block-storage disk image exported over iSCSI
type Image struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	SizeGB      float64     `json:"size_gb"`
	DeviceType  DeviceType  `json:"device_type"`
	AssignedTo  string      `json:"assigned_to,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	BackingPath string      `json:"backing_path"`
	Status      ImageStatus `json:"status"`
	DriftReason string      `json:"drift_reason,omitempty"`
}

// Linkable reports whether the image can take a new assignment
func (img Image) Linkable() bool {
	return img.AssignedTo == "" && img.Status == ImageStatusReady
}

// NewImage is the payload creating an image
type NewImage struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	SizeGB     float64    `json:"size_gb"`
	DeviceType DeviceType `json:"device_type"`
}

// Validate validates the image creation payload
func (n NewImage) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.ID, validation.Required, validation.Length(1, 128),
			validation.Match(imageIDRegexp).Error("must match [a-zA-Z0-9][a-zA-Z0-9._-]*")),
		validation.Field(&n.Name, validation.Length(0, 128)),
		validation.Field(&n.SizeGB, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&n.DeviceType, validation.Required, deviceTypeRule),
	)
}

// ValidateImageID validates an image id outside of a creation payload
func ValidateImageID(id string) error {
	return NewValidationError(validation.Validate(id,
		validation.Required, validation.Length(1, 128),
		validation.Match(imageIDRegexp).Error("must match [a-zA-Z0-9][a-zA-Z0-9._-]*"),
	))
}
