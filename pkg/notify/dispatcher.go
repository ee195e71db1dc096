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

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

const householdTopic = "household"

// PresenceEvent is the retained per-device payload.
type PresenceEvent struct {
	EventID   string              `json:"event_id"`
	Device    string              `json:"device"`
	Status    models.DeviceStatus `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
}

// HouseholdEvent is the retained aggregate payload, published whenever
// occupancy flips between someone-home and nobody-home.
type HouseholdEvent struct {
	EventID      string    `json:"event_id"`
	Occupied     bool      `json:"occupied"`
	PresentCount int       `json:"present_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// Dispatcher turns confirmed transitions into retained broker messages.
// Publish failures are logged and dropped; presence state is recomputed
// from fresh probes, so a missed notification self-heals on the next
// transition.
type Dispatcher struct {
	publisher Publisher
	prefix    string
	present   map[string]struct{}
	occupied  bool
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher publishing under the given topic
// prefix. Occupancy starts empty, matching the tracker's all-absent
// initial state.
func NewDispatcher(publisher Publisher, prefix string, log logger.Logger) *Dispatcher {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}

	return &Dispatcher{
		publisher: publisher,
		prefix:    prefix,
		present:   make(map[string]struct{}),
		logger:    log,
	}
}

// OnTransition publishes the device transition and, when occupancy flips,
// the household aggregate. Never returns an error to the caller.
func (d *Dispatcher) OnTransition(ctx context.Context, event models.StateTransition) {
	d.publishDevice(ctx, event)
	d.updateHousehold(ctx, event)
}

func (d *Dispatcher) publishDevice(ctx context.Context, event models.StateTransition) {
	payload := PresenceEvent{
		EventID:   uuid.New().String(),
		Device:    event.Device,
		Status:    event.Status,
		Timestamp: event.Timestamp,
	}

	d.publish(ctx, d.prefix+"/"+event.Device, payload)
}

func (d *Dispatcher) updateHousehold(ctx context.Context, event models.StateTransition) {
	if event.Status == models.StatusPresent {
		d.present[event.Device] = struct{}{}
	} else {
		delete(d.present, event.Device)
	}

	occupied := len(d.present) > 0
	if occupied == d.occupied {
		return
	}

	d.occupied = occupied

	payload := HouseholdEvent{
		EventID:      uuid.New().String(),
		Occupied:     occupied,
		PresentCount: len(d.present),
		Timestamp:    event.Timestamp,
	}

	d.publish(ctx, d.prefix+"/"+householdTopic, payload)
}

func (d *Dispatcher) publish(ctx context.Context, topic string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error().Err(err).Str("topic", topic).Msg("Failed to marshal presence payload")
		return
	}

	if err := d.publisher.Publish(ctx, topic, data, true); err != nil {
		d.logger.Error().Err(err).Str("topic", topic).Msg("Publish failed, dropping event")
	}
}
