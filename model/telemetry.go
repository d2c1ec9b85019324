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
)

// CounterSample is a cumulative counter snapshot reported by a device
// during an install session.
type CounterSample struct {
	MAC       string    `json:"mac"`
	Timestamp time.Time `json:"timestamp"`
	DiskRead  uint64    `json:"disk_read_bytes"`
	DiskWrite uint64    `json:"disk_write_bytes"`
	NetRx     uint64    `json:"net_rx_bytes"`
	NetTx     uint64    `json:"net_tx_bytes"`
	HTTPBytes uint64    `json:"http_bytes"`
}

// Validate validates the sample
func (s CounterSample) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.MAC, validation.Required),
	)
}

// Rate is a per-second rate; Valid is false when the rate could not be
// computed (counter reset or non-positive elapsed time).
type Rate struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// DeviceRates is the latest computed rate set for a device
type DeviceRates struct {
	MAC          string    `json:"mac"`
	At           time.Time `json:"at"`
	DiskRead     Rate      `json:"disk_read"`
	DiskWrite    Rate      `json:"disk_write"`
	NetRx        Rate      `json:"net_rx"`
	NetTx        Rate      `json:"net_tx"`
	HTTP         Rate      `json:"http"`
	Active       bool      `json:"active"`
	Stalled      bool      `json:"stalled"`
	LastProgress time.Time `json:"last_progress"`
}
