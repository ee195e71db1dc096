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

// Package notify maps confirmed presence transitions to outbound retained
// messages on a broker.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/carverauto/presenced/pkg/logger"
)

const (
	TypeMQTT = "mqtt"
	TypeNATS = "nats"

	defaultTopicPrefix = "presence"
)

var (
	errUnknownNotifierType = errors.New("unknown notifier type")
	errBrokerRequired      = errors.New("mqtt notifier requires a broker URL")
	errNATSURLRequired     = errors.New("nats notifier requires a server URL")
)

// Publisher is the messaging capability the dispatcher publishes through.
// Connection lifecycle (connect, auth, reconnect) belongs entirely to the
// implementation. A retained publish makes the broker replay the last value
// to new subscribers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
	Close(ctx context.Context) error
}

// Config selects and configures the messaging transport.
type Config struct {
	Type        string `json:"type"`
	Broker      string `json:"broker,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
	NATSURL     string `json:"nats_url,omitempty"`
	NATSBucket  string `json:"nats_bucket,omitempty"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeMQTT:
		if c.Broker == "" {
			return errBrokerRequired
		}
	case TypeNATS:
		if c.NATSURL == "" {
			return errNATSURLRequired
		}
	default:
		return fmt.Errorf("%w: %q (expected '%s' or '%s')", errUnknownNotifierType, c.Type, TypeMQTT, TypeNATS)
	}

	if c.TopicPrefix == "" {
		c.TopicPrefix = defaultTopicPrefix
	}

	return nil
}

// NewPublisher creates the configured transport. Exactly one broker is
// active per process.
func NewPublisher(ctx context.Context, cfg *Config, log logger.Logger) (Publisher, error) {
	switch cfg.Type {
	case TypeMQTT:
		return NewMQTTPublisher(ctx, cfg, log)
	case TypeNATS:
		return NewJetStreamPublisher(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownNotifierType, cfg.Type)
	}
}
