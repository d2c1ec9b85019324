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
	"sort"
	"strconv"
	"strings"

	"github.com/netboot-orchestrator/netboot/catalog"
)

// Menu categories, in display order
const (
	CategoryWindows        = "Windows"
	CategoryLinux          = "Linux"
	CategoryInfrastructure = "Infrastructure"
	CategoryOther          = "Other"
)

var categoryOrder = []string{
	CategoryWindows, CategoryLinux, CategoryInfrastructure, CategoryOther,
}

var categoryKeywords = map[string][]string{
	CategoryWindows: {"windows", "win7", "win8", "win10", "win11", "winpe"},
	CategoryLinux: {
		"linux", "ubuntu", "debian", "fedora", "centos", "rocky", "alma",
		"arch", "mint", "opensuse", "suse", "kali", "alpine", "rhel",
		"manjaro", "gentoo", "nixos", "raspios", "raspbian",
	},
	CategoryInfrastructure: {
		"proxmox", "esxi", "vmware", "truenas", "freenas", "pfsense",
		"opnsense", "xcp", "unraid", "talos", "harvester", "memtest",
		"gparted", "clonezilla",
	},
}

// Categorize returns the menu category of an installer name. Matching is
// case-insensitive and the first category in display order wins.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, category := range categoryOrder {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				return category
			}
		}
	}
	return CategoryOther
}

// MenuItem is one selectable installer
type MenuItem struct {
	Label    string
	Title    string
	Commands []string
}

// Category groups menu items under a heading
type Category struct {
	Name  string
	Items []MenuItem
}

// BuildCategories sorts installers into categories and assigns labels.
// Empty categories are omitted; items are sorted by name, ignoring case
// first. Labels are unique: repeats get _2, _3 suffixes in menu order.
func BuildCategories(c *catalog.Catalog) []Category {
	if c == nil {
		return nil
	}
	grouped := map[string][]catalog.Installer{}
	for _, inst := range c.Installers {
		category := Categorize(inst.Name)
		grouped[category] = append(grouped[category], inst)
	}

	used := map[string]bool{}
	var out []Category
	for _, name := range categoryOrder {
		installers := grouped[name]
		if len(installers) == 0 {
			continue
		}
		sort.SliceStable(installers, func(i, j int) bool {
			li, lj := strings.ToLower(installers[i].Name), strings.ToLower(installers[j].Name)
			if li != lj {
				return li < lj
			}
			return installers[i].Name < installers[j].Name
		})
		category := Category{Name: name}
		for _, inst := range installers {
			base := "os_" + labelToken(inst.Name)
			label := base
			for n := 2; used[label]; n++ {
				label = base + "_" + strconv.Itoa(n)
			}
			used[label] = true
			category.Items = append(category.Items, MenuItem{
				Label:    label,
				Title:    ASCII(inst.Name),
				Commands: InstallerCommands(c, inst),
			})
		}
		out = append(out, category)
	}
	return out
}

// InstallerCommands returns the iPXE commands booting an installer
func InstallerCommands(c *catalog.Catalog, inst catalog.Installer) []string {
	src := c.SourceURL(inst)
	switch inst.Method() {
	case catalog.MethodKernel:
		kernel := "kernel " + src
		if inst.Cmdline != "" {
			kernel += " " + ASCII(inst.Cmdline)
		}
		cmds := []string{kernel}
		if inst.Initrd != "" {
			cmds = append(cmds, "initrd "+c.Resolve(inst.Initrd))
		}
		return append(cmds, "boot")
	case catalog.MethodChain:
		return []string{"chain " + src}
	default:
		return []string{"sanboot --no-describe " + src}
	}
}
