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
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/presenced/pkg/logger"
)

const defaultNATSBucket = "presence"

// JetStreamPublisher maps retained publishes onto a JetStream key-value
// bucket: a KV put is last-value-wins, so new consumers observe the latest
// status immediately, the same replay semantics MQTT gets from the retain
// flag. Non-retained publishes go out as plain NATS messages.
type JetStreamPublisher struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	logger logger.Logger
}

var _ Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher connects to the NATS server and ensures the
// key-value bucket exists.
func NewJetStreamPublisher(ctx context.Context, cfg *Config, log logger.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name(defaultClientID),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket := cfg.NATSBucket
	if bucket == "" {
		bucket = defaultNATSBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
	}

	return &JetStreamPublisher{
		nc:     nc,
		kv:     kv,
		logger: log,
	}, nil
}

func (j *JetStreamPublisher) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	subject := strings.ReplaceAll(topic, "/", ".")

	if !retained {
		if err := j.nc.Publish(subject, payload); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", subject, err)
		}

		return nil
	}

	if _, err := j.kv.Put(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to put %s: %w", subject, err)
	}

	return nil
}

func (j *JetStreamPublisher) Close(_ context.Context) error {
	j.nc.Close()
	return nil
}
