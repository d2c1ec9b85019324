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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMAC(t *testing.T) {
	testCases := []struct {
		Name  string
		MAC   string
		Out   string
		Error bool
	}{
		{Name: "colon upper", MAC: "AA:BB:CC:DD:EE:FF", Out: "aa:bb:cc:dd:ee:ff"},
		{Name: "dashed", MAC: "aa-bb-cc-dd-ee-01", Out: "aa:bb:cc:dd:ee:01"},
		{Name: "dotted", MAC: "aabb.ccdd.ee02", Out: "aa:bb:cc:dd:ee:02"},
		{Name: "whitespace", MAC: " aa:bb:cc:dd:ee:03 ", Out: "aa:bb:cc:dd:ee:03"},
		{Name: "garbage", MAC: "not-a-mac", Error: true},
		{Name: "empty", MAC: "", Error: true},
		{Name: "eui64", MAC: "01:23:45:67:89:ab:cd:ef", Error: true},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			out, err := NormalizeMAC(tc.MAC)
			if tc.Error {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.Out, out)
			}
		})
	}
}

func TestNormalizeIP(t *testing.T) {
	testCases := []struct {
		Name  string
		IP    string
		Out   string
		Error bool
	}{
		{Name: "empty", IP: "", Out: ""},
		{Name: "ipv4", IP: "10.0.0.20", Out: "10.0.0.20"},
		{Name: "ipv6", IP: "FE80::0001", Out: "fe80::1"},
		{Name: "line break", IP: "10.0.0.5\nchain http://evil/x.ipxe", Error: true},
		{Name: "hostname", IP: "boot.lab", Error: true},
		{Name: "ipxe variable", IP: "${net0/ip}", Error: true},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			out, err := NormalizeIP(tc.IP)
			if tc.Error {
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.Out, out)
			}
		})
	}
}

func TestMACDashed(t *testing.T) {
	assert.Equal(t, "aa-bb-cc-dd-ee-ff", MACDashed("aa:bb:cc:dd:ee:ff"))
}

func TestDeviceRegistrationValidate(t *testing.T) {
	testCases := []struct {
		Name    string
		Request DeviceRegistration
		Error   error
	}{
		{
			Name: "ok",
			Request: DeviceRegistration{
				MAC:        "aa:bb:cc:dd:ee:ff",
				DeviceType: DeviceTypeX64,
				Name:       "bench-1",
			},
		},
		{
			Name: "bad mac",
			Request: DeviceRegistration{
				MAC:        "zz",
				DeviceType: DeviceTypeX64,
			},
			Error: errors.New("mac: must be a valid MAC address."),
		},
		{
			Name: "eui64 mac",
			Request: DeviceRegistration{
				MAC:        "01:23:45:67:89:ab:cd:ef",
				DeviceType: DeviceTypeRaspi,
			},
			Error: errors.New("mac: must be a 48-bit MAC address."),
		},
		{
			Name: "bad type",
			Request: DeviceRegistration{
				MAC:        "aa:bb:cc:dd:ee:ff",
				DeviceType: "arm",
			},
			Error: errors.New("device_type: must be one of raspi, x86, x64."),
		},
		{
			Name:    "missing everything",
			Request: DeviceRegistration{},
			Error:   errors.New("device_type: cannot be blank; mac: cannot be blank."),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			err := tc.Request.Validate()
			if tc.Error != nil {
				assert.EqualError(t, err, tc.Error.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeviceUpdateApply(t *testing.T) {
	name := "renamed"
	enabled := false
	ks := "lts"

	d := Device{MAC: "aa:bb:cc:dd:ee:ff", Name: "a", Enabled: true, DeviceType: DeviceTypeX86}
	assert.False(t, DeviceUpdate{}.Apply(&d))

	assert.True(t, DeviceUpdate{Name: &name}.Apply(&d))
	assert.Equal(t, "renamed", d.Name)
	assert.False(t, DeviceUpdate{Name: &name}.Apply(&d))

	before := d.ArtifactKey()
	assert.True(t, DeviceUpdate{Enabled: &enabled, KernelSet: &ks}.Apply(&d))
	assert.NotEqual(t, before, d.ArtifactKey())
	assert.Equal(t, "lts", d.ArtifactKey().KernelSet)
}

func TestNewImageValidate(t *testing.T) {
	testCases := []struct {
		Name  string
		Image NewImage
		Error error
	}{
		{
			Name:  "ok",
			Image: NewImage{ID: "win11.base", SizeGB: 64, DeviceType: DeviceTypeX64},
		},
		{
			Name:  "bad id",
			Image: NewImage{ID: "-bad", SizeGB: 64, DeviceType: DeviceTypeX64},
			Error: errors.New("id: must match [a-zA-Z0-9][a-zA-Z0-9._-]*."),
		},
		{
			Name:  "zero size",
			Image: NewImage{ID: "img", DeviceType: DeviceTypeX64},
			Error: errors.New("size_gb: cannot be blank."),
		},
		{
			Name:  "negative size",
			Image: NewImage{ID: "img", SizeGB: -4, DeviceType: DeviceTypeX64},
			Error: errors.New("size_gb: must be greater than 0."),
		},
		{
			Name:  "fractional size",
			Image: NewImage{ID: "img", SizeGB: 0.5, DeviceType: DeviceTypeX64},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			err := tc.Image.Validate()
			if tc.Error != nil {
				assert.EqualError(t, err, tc.Error.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateImageID(t *testing.T) {
	assert.NoError(t, ValidateImageID("a.b_c-1"))
	err := ValidateImageID("../etc")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestResolveKernelSet(t *testing.T) {
	sets := []KernelSet{
		{Name: "default", KernelURL: "http://k/def", IsDefault: true},
		{Name: "lts", KernelURL: "http://k/lts"},
	}
	ks, ok := ResolveKernelSet("", sets)
	assert.True(t, ok)
	assert.Equal(t, "default", ks.Name)

	ks, ok = ResolveKernelSet("lts", sets)
	assert.True(t, ok)
	assert.Equal(t, "http://k/lts", ks.KernelURL)

	_, ok = ResolveKernelSet("missing", sets)
	assert.False(t, ok)
}

func TestValidationError(t *testing.T) {
	assert.Nil(t, NewValidationError(nil))
	err := NewValidationError(errors.New("bad input"))
	assert.EqualError(t, err, "bad input")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
}
