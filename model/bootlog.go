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
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Boot log event names written by the service itself
const (
	BootEventCheckIn      = "check-in"
	BootEventMenu         = "menu_loaded"
	// install sessions reported by the installer environment; telemetry
	// stall detection only considers devices inside a session
	BootEventInstallStart = "install_start"
	BootEventInstallEnd   = "install_complete"
)

// DefaultBootLogLimit caps boot log listings when no limit is given
const DefaultBootLogLimit = 100

// BootLogEntry is one line of the append-only boot log
type BootLogEntry struct {
	ID        string    `json:"id" bson:"_id"`
	MAC       string    `json:"mac" bson:"mac"`
	Event     string    `json:"event" bson:"event"`
	Details   string    `json:"details,omitempty" bson:"details,omitempty"`
	IP        string    `json:"ip,omitempty" bson:"ip,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// BootEvent is a boot event reported by a client or the web UI
type BootEvent struct {
	MAC     string `json:"mac" form:"mac"`
	Event   string `json:"event" form:"event"`
	Details string `json:"details" form:"details"`
	IP      string `json:"ip" form:"ip"`
}

// Validate validates the boot event
func (e BootEvent) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MAC, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Event, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Details, validation.Length(0, 1024)),
		validation.Field(&e.IP, is.IP),
	)
}

// BootLogFilter selects boot log entries, newest first
type BootLogFilter struct {
	MAC   string
	Limit int
}
