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

// Package tracker converts raw probe results into debounced presence state.
package tracker

import (
	"time"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

// DeviceState is the hysteresis state for a single device. Exactly one of
// the two counters accumulates at any time; the opposing counter is reset
// by every result.
type DeviceState struct {
	Status            models.DeviceStatus
	ConsecutiveHits   int
	ConsecutiveMisses int
	LastChange        time.Time
}

// DeviceTracker owns the per-device hysteresis state machines. It is not
// safe for concurrent use; the poll scheduler applies results from a single
// control point per cycle.
type DeviceTracker struct {
	hitThreshold  int
	missThreshold int
	states        map[string]*DeviceState
	now           func() time.Time
	logger        logger.Logger
}

// New creates a tracker for the configured device set. Every device starts
// absent and must be positively confirmed present. Thresholds below 1 are
// clamped to 1, which disables hysteresis for that direction. A nil clock
// defaults to time.Now.
func New(devices []models.Device, hitThreshold, missThreshold int, now func() time.Time, log logger.Logger) *DeviceTracker {
	if hitThreshold < 1 {
		hitThreshold = 1
	}

	if missThreshold < 1 {
		missThreshold = 1
	}

	if now == nil {
		now = time.Now
	}

	states := make(map[string]*DeviceState, len(devices))
	for _, d := range devices {
		states[d.Name] = &DeviceState{Status: models.StatusAbsent}
	}

	return &DeviceTracker{
		hitThreshold:  hitThreshold,
		missThreshold: missThreshold,
		states:        states,
		now:           now,
		logger:        log,
	}
}

// RecordProbe feeds one probe result into the device's state machine and
// returns a transition if this result crossed the hysteresis threshold,
// nil otherwise. Results for unknown devices indicate a programming defect;
// they are logged and ignored so the rest of the household keeps tracking.
func (t *DeviceTracker) RecordProbe(name string, reachable bool) *models.StateTransition {
	state, ok := t.states[name]
	if !ok {
		t.logger.Error().Str("device", name).Msg("Probe result for untracked device, dropping")
		return nil
	}

	if reachable {
		return t.recordHit(name, state)
	}

	return t.recordMiss(name, state)
}

func (t *DeviceTracker) recordHit(name string, state *DeviceState) *models.StateTransition {
	state.ConsecutiveMisses = 0

	if state.Status == models.StatusPresent {
		return nil
	}

	state.ConsecutiveHits++
	if state.ConsecutiveHits < t.hitThreshold {
		return nil
	}

	return t.transition(name, state, models.StatusPresent)
}

func (t *DeviceTracker) recordMiss(name string, state *DeviceState) *models.StateTransition {
	state.ConsecutiveHits = 0

	if state.Status == models.StatusAbsent {
		return nil
	}

	state.ConsecutiveMisses++
	if state.ConsecutiveMisses < t.missThreshold {
		return nil
	}

	return t.transition(name, state, models.StatusAbsent)
}

func (t *DeviceTracker) transition(name string, state *DeviceState, status models.DeviceStatus) *models.StateTransition {
	state.Status = status
	state.ConsecutiveHits = 0
	state.ConsecutiveMisses = 0
	state.LastChange = t.now()

	t.logger.Info().
		Str("device", name).
		Str("status", string(status)).
		Msg("Device status confirmed")

	return &models.StateTransition{
		Device:    name,
		Status:    status,
		Timestamp: state.LastChange,
	}
}

// State returns a copy of the device's current state.
func (t *DeviceTracker) State(name string) (DeviceState, bool) {
	state, ok := t.states[name]
	if !ok {
		return DeviceState{}, false
	}

	return *state, true
}

// Statuses returns the confirmed status of every tracked device.
func (t *DeviceTracker) Statuses() map[string]models.DeviceStatus {
	statuses := make(map[string]models.DeviceStatus, len(t.states))
	for name, state := range t.states {
		statuses[name] = state.Status
	}

	return statuses
}
