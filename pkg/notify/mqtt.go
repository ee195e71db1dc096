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
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/carverauto/presenced/pkg/logger"
)

const (
	mqttKeepAlive      = 30 // seconds
	mqttSessionExpiry  = 60 // seconds
	mqttPublishTimeout = 10 * time.Second
	defaultClientID    = "presenced"
)

// MQTTPublisher publishes through an MQTT broker using autopaho's
// connection manager. Reconnection is handled in the background; a publish
// attempted while disconnected fails once its timeout elapses and the
// caller drops the event.
type MQTTPublisher struct {
	cm     *autopaho.ConnectionManager
	logger logger.Logger
}

var _ Publisher = (*MQTTPublisher)(nil)

// NewMQTTPublisher connects to the configured broker. The initial
// connection is established in the background, so an unreachable broker
// does not fail startup.
func NewMQTTPublisher(ctx context.Context, cfg *Config, log logger.Logger) (*MQTTPublisher, error) {
	broker, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL %q: %w", cfg.Broker, err)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		// Random suffix so two instances never steal each other's session.
		clientID = defaultClientID + "-" + uuid.NewString()[:8]
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     mqttKeepAlive,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         mqttSessionExpiry,
		ConnectUsername:               cfg.Username,
		ConnectPassword:               []byte(cfg.Password),
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			log.Info().Str("broker", broker.String()).Msg("Connected to MQTT broker")
		},
		OnConnectError: func(err error) {
			log.Error().Err(err).Msg("MQTT connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
			OnClientError: func(err error) {
				log.Error().Err(err).Msg("MQTT client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				log.Warn().Uint8("reason_code", uint8(d.ReasonCode)).Msg("MQTT server requested disconnect")
			},
		},
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT connection: %w", err)
	}

	return &MQTTPublisher{
		cm:     cm,
		logger: log,
	}, nil
}

// Publish sends a QoS 1 message with the MQTT retain flag.
func (m *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	pubCtx, cancel := context.WithTimeout(ctx, mqttPublishTimeout)
	defer cancel()

	_, err := m.cm.Publish(pubCtx, &paho.Publish{
		QoS:     1,
		Topic:   topic,
		Payload: payload,
		Retain:  retained,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	return nil
}

func (m *MQTTPublisher) Close(ctx context.Context) error {
	return m.cm.Disconnect(ctx)
}
