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
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultKernelSetName is the kernel set seeded on first open
const DefaultKernelSetName = "default"

// KernelSet is a named kernel + initramfs pair
type KernelSet struct {
	Name         string `json:"name"`
	KernelURL    string `json:"kernel_url"`
	InitramfsURL string `json:"initramfs_url"`
	Cmdline      string `json:"cmdline,omitempty"`
	IsDefault    bool   `json:"is_default"`
}

// Validate validates the kernel set
func (k KernelSet) Validate() error {
	return validation.ValidateStruct(&k,
		validation.Field(&k.Name, validation.Required, validation.Length(1, 64),
			validation.Match(nameRegexp)),
		validation.Field(&k.KernelURL, validation.Length(0, 1024), is.RequestURL),
		validation.Field(&k.InitramfsURL, validation.Length(0, 1024), is.RequestURL),
		validation.Field(&k.Cmdline, validation.Length(0, 1024)),
	)
}

// ResolveKernelSet returns the kernel set a device booting with name uses:
// the named set, or the default one when name is empty.
func ResolveKernelSet(name string, sets []KernelSet) (KernelSet, bool) {
	for _, ks := range sets {
		if name == "" && ks.IsDefault {
			return ks, true
		} else if name != "" && ks.Name == name {
			return ks, true
		}
	}
	return KernelSet{}, false
}
