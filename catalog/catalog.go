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

package catalog

import (
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BootMethod is how iPXE starts an installer
type BootMethod string

// Boot methods by installer kind
const (
	MethodSanboot BootMethod = "sanboot"
	MethodChain   BootMethod = "chain"
	MethodKernel  BootMethod = "kernel"
)

// Installer is one installable target offered in the boot menu
type Installer struct {
	Name string `yaml:"name" json:"name"`
	// Path is relative to the catalog base URL; URL overrides it.
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Kernel  string `yaml:"kernel,omitempty" json:"kernel,omitempty"`
	Initrd  string `yaml:"initrd,omitempty" json:"initrd,omitempty"`
	Cmdline string `yaml:"cmdline,omitempty" json:"cmdline,omitempty"`
}

// Validate validates the installer entry
func (i Installer) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&i.Path, validation.When(i.URL == "" && i.Kernel == "",
			validation.Required.Error("one of path, url or kernel is required"))),
		validation.Field(&i.Initrd, validation.When(i.Kernel == "",
			validation.Empty.Error("requires kernel"))),
	)
}

// Method returns how the installer is booted: kernel entries boot their
// kernel and initrd, .ipxe/.efi files are chained and everything else is
// attached as a SAN disk.
func (i Installer) Method() BootMethod {
	if i.Kernel != "" {
		return MethodKernel
	}
	name := i.URL
	if name == "" {
		name = i.Path
	}
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "ipxe", "efi":
		return MethodChain
	default:
		return MethodSanboot
	}
}

// Catalog is the installer manifest
type Catalog struct {
	BaseURL    string      `yaml:"base_url,omitempty"`
	Installers []Installer `yaml:"installers"`
}

// Validate validates every installer entry
func (c Catalog) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Installers),
	)
}

// Resolve turns a catalog-relative reference into an absolute URL
func (c Catalog) Resolve(ref string) string {
	if ref == "" || strings.Contains(ref, "://") || c.BaseURL == "" {
		return ref
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(ref, "/")
}

// SourceURL returns the absolute URL the installer boots from
func (c Catalog) SourceURL(i Installer) string {
	if i.URL != "" {
		return i.URL
	}
	if i.Kernel != "" {
		return c.Resolve(i.Kernel)
	}
	return c.Resolve(i.Path)
}

// Parse decodes a YAML catalog
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid catalog")
	}
	return &c, nil
}

// Source loads the catalog file, re-reading it when it changes on disk
type Source struct {
	path    string
	baseURL string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	cached  *Catalog
}

// NewSource returns a Source for the file at path. baseURL is used when the
// file does not set one.
func NewSource(path, baseURL string) *Source {
	return &Source{path: path, baseURL: baseURL}
}

// Load returns the current catalog; a missing file is an empty catalog
func (s *Source) Load() (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return &Catalog{BaseURL: s.baseURL}, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to stat catalog")
	}
	if s.cached != nil && fi.ModTime().Equal(s.modTime) && fi.Size() == s.size {
		return s.cached, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if c.BaseURL == "" {
		c.BaseURL = s.baseURL
	}
	s.cached, s.modTime, s.size = c, fi.ModTime(), fi.Size()
	return c, nil
}
