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

import "time"

// EventKind names a registry or reconciler change
type EventKind string

// Event kinds published on netboot.events.<kind>
const (
	EventDeviceRegistered EventKind = "device_registered"
	EventDeviceUpdated    EventKind = "device_updated"
	EventDeviceDeleted    EventKind = "device_deleted"
	EventUnknownDevice    EventKind = "unknown_device"
	EventImageCreated     EventKind = "image_created"
	EventImageDeleted     EventKind = "image_deleted"
	EventImageLinked      EventKind = "image_linked"
	EventImageUnlinked    EventKind = "image_unlinked"
	EventImageCopied      EventKind = "image_copied"
	EventKernelSetChanged EventKind = "kernel_set_changed"
	EventReconciled       EventKind = "reconciled"
	EventDrift            EventKind = "drift"
)

// Event is a change notification
type Event struct {
	Kind      EventKind `msgpack:"kind" json:"kind"`
	MAC       string    `msgpack:"mac,omitempty" json:"mac,omitempty"`
	ImageID   string    `msgpack:"image_id,omitempty" json:"image_id,omitempty"`
	Details   string    `msgpack:"details,omitempty" json:"details,omitempty"`
	Timestamp time.Time `msgpack:"ts" json:"timestamp"`
}

// ReconcileRequest asks the reconciler to converge one device, or every
// device when MAC is empty.
type ReconcileRequest struct {
	MAC string `msgpack:"mac,omitempty"`
}
