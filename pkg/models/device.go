/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package models provides data models for the presence daemon.
package models

import "time"

// ProbeMode selects the reachability check used for a device.
type ProbeMode string

const (
	ModeICMP ProbeMode = "icmp"
	ModeTCP  ProbeMode = "tcp"
)

// DeviceStatus is the confirmed, debounced presence state of a device.
type DeviceStatus string

const (
	StatusPresent DeviceStatus = "present"
	StatusAbsent  DeviceStatus = "absent"
)

// Device identifies a tracked device. Immutable after configuration load.
type Device struct {
	Name    string
	Address string
	Port    int
	Mode    ProbeMode
}

// ProbeResult is the outcome of a single reachability probe.
// A timeout or transport error is reported as Reachable=false with Err set;
// consumers treat it identically to an explicit unreachable observation.
type ProbeResult struct {
	Device    Device
	Reachable bool
	RespTime  time.Duration
	Err       error
}

// StateTransition records a confirmed status change for a device.
// Produced exactly once per confirmed change.
type StateTransition struct {
	Device    string       `json:"device"`
	Status    DeviceStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}
