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
	"fmt"
	"strings"

	"github.com/netboot-orchestrator/netboot/catalog"
	"github.com/netboot-orchestrator/netboot/model"
)

// iPXE variables used when the request did not carry the identity
const (
	ipxeMAC = "${net0/mac}"
	ipxeIP  = "${net0/ip}"
)

// Options is the static configuration rendered artifacts depend on
type Options struct {
	Title        string
	BootServerIP string
	IQNPrefix    string
	BootAPIURL   string
}

// TargetIQN returns the iSCSI target name of an image
func TargetIQN(prefix, imageID string) string {
	return prefix + ":" + imageID
}

// InitiatorIQN returns the initiator name a device logs in with
func InitiatorIQN(prefix, mac string) string {
	return prefix + ":client-" + model.MACDashed(mac)
}

// SANURL returns the iPXE sanboot URL of a target
func SANURL(server, targetIQN string) string {
	return "iscsi:" + server + "::::" + targetIQN
}

// Identity is what the script shows about the booting client
type Identity struct {
	MAC string
	IP  string
}

// DirectBoot boots the device straight from its assigned image
type DirectBoot struct {
	ImageID      string
	ImageName    string
	InitiatorIQN string
	TargetIQN    string
	SANURL       string
}

// Script is a boot script document. Exactly one of Menu and Direct is set.
type Script struct {
	Title    string
	Identity Identity
	Notice   string
	Menu     []Category
	Direct   *DirectBoot
}

// BootInput is everything a boot script is derived from
type BootInput struct {
	MAC     string
	IP      string
	Device  *model.Device
	Image   *model.Image
	Catalog *catalog.Catalog
	Notice  string
}

// BuildBootScript builds the boot script for a client. An enabled device
// with an assigned image boots it directly; everyone else gets the menu.
func BuildBootScript(in BootInput, opts Options) Script {
	s := Script{
		Title:    ASCII(opts.Title),
		Identity: Identity{MAC: ASCII(in.MAC), IP: ASCII(in.IP)},
		Notice:   ASCII(in.Notice),
	}
	if s.Title == "" {
		s.Title = "Netboot"
	}
	if s.Identity.MAC == "" {
		s.Identity.MAC = ipxeMAC
	}
	if s.Identity.IP == "" {
		s.Identity.IP = ipxeIP
	}
	if d := in.Device; d != nil && ImageBoot(*d, in.Image) {
		target := TargetIQN(opts.IQNPrefix, in.Image.ID)
		s.Direct = &DirectBoot{
			ImageID:      in.Image.ID,
			ImageName:    ASCII(in.Image.Name),
			InitiatorIQN: InitiatorIQN(opts.IQNPrefix, d.MAC),
			TargetIQN:    target,
			SANURL:       SANURL(opts.BootServerIP, target),
		}
		return s
	}
	s.Menu = BuildCategories(in.Catalog)
	if s.Menu == nil {
		s.Menu = []Category{}
	}
	return s
}

type writer struct {
	strings.Builder
}

func (w *writer) line(format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

// Render emits the script as iPXE text
func (s Script) Render() string {
	w := &writer{}
	w.line("#!ipxe")
	w.line("# %s", s.Title)
	w.line("")
	if s.Direct != nil {
		s.renderDirect(w)
	} else {
		s.renderMenu(w)
	}
	return w.String()
}

func (s Script) renderDirect(w *writer) {
	d := s.Direct
	w.line("echo ================================================")
	w.line("echo  Booting from iSCSI")
	w.line("echo  Device: %s", s.Identity.MAC)
	w.line("echo  IP:     %s", s.Identity.IP)
	w.line("echo  Image:  %s", d.ImageName)
	w.line("echo  Target: %s", d.TargetIQN)
	w.line("echo ================================================")
	if s.Notice != "" {
		w.line("echo  %s", s.Notice)
	}
	w.line("set initiator-iqn %s", d.InitiatorIQN)
	w.line("sanboot %s || goto failed", d.SANURL)
	w.line("")
	w.line(":failed")
	w.line("echo !! iSCSI boot failed")
	w.line("prompt Press any key for the iPXE shell...")
	w.line("shell")
}

func (s Script) renderMenu(w *writer) {
	w.line(":start")
	w.line("menu %s", s.Title)
	w.line("item --gap --  MAC: %s", s.Identity.MAC)
	w.line("item --gap --  IP:  %s", s.Identity.IP)
	if s.Notice != "" {
		w.line("item --gap --  %s", s.Notice)
	}
	for _, c := range s.Menu {
		w.line("item --gap --")
		w.line("item --gap --  ==== %s ====", c.Name)
		for _, it := range c.Items {
			w.line("item %s %s", it.Label, it.Title)
		}
	}
	w.line("item --gap --")
	w.line("item shell iPXE Shell")
	w.line("item reboot Reboot")
	w.line("choose selected || goto shell")
	w.line("goto ${selected}")
	for _, c := range s.Menu {
		for _, it := range c.Items {
			w.line("")
			w.line(":%s", it.Label)
			w.line("echo Loading: %s", it.Title)
			last := len(it.Commands) - 1
			for i, cmd := range it.Commands {
				if i == last {
					cmd += " || goto failed"
				}
				w.line("%s", cmd)
			}
			w.line("goto start")
		}
	}
	w.line("")
	w.line(":failed")
	w.line("echo !! Boot failed, returning to menu in 5s...")
	w.line("sleep 5")
	w.line("goto start")
	w.line("")
	w.line(":shell")
	w.line("echo Type 'exit' to return to menu")
	w.line("shell")
	w.line("goto start")
	w.line("")
	w.line(":reboot")
	w.line("reboot")
}
