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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// capturePublisher records publishes and can be told to fail.
type capturePublisher struct {
	messages []published
	err      error
}

func (c *capturePublisher) Publish(_ context.Context, topic string, payload []byte, retained bool) error {
	if c.err != nil {
		return c.err
	}

	c.messages = append(c.messages, published{topic: topic, payload: payload, retained: retained})

	return nil
}

func (*capturePublisher) Close(context.Context) error { return nil }

func transition(device string, status models.DeviceStatus) models.StateTransition {
	return models.StateTransition{
		Device:    device,
		Status:    status,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestOnTransition_PublishesRetainedDeviceTopic(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	d := NewDispatcher(pub, "presence", logger.NewTestLogger())

	d.OnTransition(context.Background(), transition("alice-phone", models.StatusPresent))

	require.NotEmpty(t, pub.messages)

	msg := pub.messages[0]
	assert.Equal(t, "presence/alice-phone", msg.topic)
	assert.True(t, msg.retained, "new subscribers must see the last known status")

	var event PresenceEvent

	require.NoError(t, json.Unmarshal(msg.payload, &event))
	assert.Equal(t, "alice-phone", event.Device)
	assert.Equal(t, models.StatusPresent, event.Status)
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestOnTransition_HouseholdFlipsOnlyOnOccupancyChange(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	d := NewDispatcher(pub, "presence", logger.NewTestLogger())

	ctx := context.Background()

	// First arrival: device topic + household flip to occupied.
	d.OnTransition(ctx, transition("alice-phone", models.StatusPresent))
	require.Len(t, pub.messages, 2)
	assert.Equal(t, "presence/household", pub.messages[1].topic)

	var hh HouseholdEvent

	require.NoError(t, json.Unmarshal(pub.messages[1].payload, &hh))
	assert.True(t, hh.Occupied)
	assert.Equal(t, 1, hh.PresentCount)

	// Second arrival: occupancy unchanged, no household publish.
	d.OnTransition(ctx, transition("bob-phone", models.StatusPresent))
	require.Len(t, pub.messages, 3)
	assert.Equal(t, "presence/bob-phone", pub.messages[2].topic)

	// One departure: still occupied.
	d.OnTransition(ctx, transition("alice-phone", models.StatusAbsent))
	require.Len(t, pub.messages, 4)

	// Last departure: household flips to empty.
	d.OnTransition(ctx, transition("bob-phone", models.StatusAbsent))
	require.Len(t, pub.messages, 6)

	require.NoError(t, json.Unmarshal(pub.messages[5].payload, &hh))
	assert.False(t, hh.Occupied)
	assert.Zero(t, hh.PresentCount)
	assert.True(t, pub.messages[5].retained)
}

func TestOnTransition_PublishFailureIsDropped(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: errors.New("broker unreachable")}
	d := NewDispatcher(pub, "presence", logger.NewTestLogger())

	// Must not panic, block, or propagate.
	d.OnTransition(context.Background(), transition("alice-phone", models.StatusPresent))

	assert.Empty(t, pub.messages)

	// Occupancy bookkeeping still advances so the next flip publishes a
	// correct aggregate once the broker is back.
	pub.err = nil
	d.OnTransition(context.Background(), transition("alice-phone", models.StatusAbsent))

	require.Len(t, pub.messages, 2)

	var hh HouseholdEvent

	require.NoError(t, json.Unmarshal(pub.messages[1].payload, &hh))
	assert.False(t, hh.Occupied)
}

func TestNewDispatcher_DefaultsTopicPrefix(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	d := NewDispatcher(pub, "", logger.NewTestLogger())

	d.OnTransition(context.Background(), transition("alice-phone", models.StatusPresent))

	require.NotEmpty(t, pub.messages)
	assert.Equal(t, "presence/alice-phone", pub.messages[0].topic)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "mqtt with broker", cfg: Config{Type: TypeMQTT, Broker: "tcp://broker:1883"}},
		{name: "mqtt without broker", cfg: Config{Type: TypeMQTT}, wantErr: true},
		{name: "nats with url", cfg: Config{Type: TypeNATS, NATSURL: "nats://broker:4222"}},
		{name: "nats without url", cfg: Config{Type: TypeNATS}, wantErr: true},
		{name: "unknown type", cfg: Config{Type: "amqp"}, wantErr: true},
		{name: "empty type", cfg: Config{}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, defaultTopicPrefix, tt.cfg.TopicPrefix)
		})
	}
}
