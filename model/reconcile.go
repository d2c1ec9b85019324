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

// Drift reasons recorded on images and devices
const (
	DriftMissingBackingFile = "backing file missing"
	DriftOrphanTarget       = "target present for unassigned image"
	DriftMissingTarget      = "assigned image has no target"
	DriftInitiatorMismatch  = "target initiator does not match assignee"
	DriftAttachFailed       = "target attach failed"
	DriftDetachFailed       = "target detach failed"
)

// TargetBinding is the recorded iSCSI target of an image
type TargetBinding struct {
	ImageID      string    `json:"image_id"`
	TID          int       `json:"tid"`
	TargetIQN    string    `json:"target_iqn"`
	BackingPath  string    `json:"backing_path"`
	InitiatorIQN string    `json:"initiator_iqn"`
	MAC          string    `json:"mac"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DriftFinding is one inconsistency found by a sweep
type DriftFinding struct {
	ImageID string `json:"image_id,omitempty"`
	MAC     string `json:"mac,omitempty"`
	Reason  string `json:"reason"`
}

// ReconcileReport describes the outcome of reconciling one device
type ReconcileReport struct {
	MAC      string     `json:"mac"`
	Written  []string   `json:"written,omitempty"`
	Removed  []string   `json:"removed,omitempty"`
	Status   SyncStatus `json:"sync_status"`
	Warnings []string   `json:"warnings,omitempty"`
}

// SweepReport is the result of a full drift sweep
type SweepReport struct {
	Devices  int            `json:"devices"`
	Images   int            `json:"images"`
	Findings []DriftFinding `json:"findings"`
}

// RepairReport is the result of an explicit repair
type RepairReport struct {
	Repaired  []DriftFinding `json:"repaired"`
	Remaining []DriftFinding `json:"remaining"`
}
