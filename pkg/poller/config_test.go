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

package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/presenced/pkg/models"
	"github.com/carverauto/presenced/pkg/notify"
)

func validConfig() *Config {
	return &Config{
		Devices: map[string]DeviceConfig{
			"alice-phone": {Address: "192.168.1.20"},
		},
		Notifier: &notify.Config{Type: notify.TypeMQTT, Broker: "tcp://127.0.0.1:1883"},
	}
}

func TestConfigValidate_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultHitThreshold, cfg.HitThreshold)
	assert.Equal(t, defaultMissThreshold, cfg.MissThreshold)
	assert.Equal(t, defaultPollInterval, time.Duration(cfg.PollInterval))
	assert.Equal(t, defaultProbeTimeout, time.Duration(cfg.ProbeTimeout))
	assert.Equal(t, models.ModeICMP, cfg.Devices["alice-phone"].Mode)
}

func TestConfigValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "no devices",
			mutate:  func(c *Config) { c.Devices = nil },
			wantErr: errNoDevices,
		},
		{
			name: "missing address",
			mutate: func(c *Config) {
				c.Devices["bob-phone"] = DeviceConfig{}
			},
			wantErr: errDeviceAddressRequired,
		},
		{
			name: "tcp without port",
			mutate: func(c *Config) {
				c.Devices["bob-phone"] = DeviceConfig{Address: "192.168.1.21", Mode: models.ModeTCP}
			},
			wantErr: errDevicePortRequired,
		},
		{
			name: "unknown probe mode",
			mutate: func(c *Config) {
				c.Devices["bob-phone"] = DeviceConfig{Address: "192.168.1.21", Mode: "arp"}
			},
			wantErr: errUnknownProbeMode,
		},
		{
			name:    "negative hit threshold",
			mutate:  func(c *Config) { c.HitThreshold = -2 },
			wantErr: errThresholdTooSmall,
		},
		{
			name:    "negative poll interval",
			mutate:  func(c *Config) { c.PollInterval = models.Duration(-time.Second) },
			wantErr: errIntervalRequired,
		},
		{
			name:    "negative probe timeout",
			mutate:  func(c *Config) { c.ProbeTimeout = models.Duration(-time.Second) },
			wantErr: errTimeoutRequired,
		},
		{
			name: "timeout not below interval",
			mutate: func(c *Config) {
				c.PollInterval = models.Duration(5 * time.Second)
				c.ProbeTimeout = models.Duration(5 * time.Second)
			},
			wantErr: errTimeoutExceedsInterval,
		},
		{
			name:    "missing notifier",
			mutate:  func(c *Config) { c.Notifier = nil },
			wantErr: errNotifierRequired,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfigValidate_ThresholdOfOneIsAccepted(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.HitThreshold = 1
	cfg.MissThreshold = 1

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.HitThreshold)
	assert.Equal(t, 1, cfg.MissThreshold)
}

func TestDeviceList_StableOrderAndDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		Devices: map[string]DeviceConfig{
			"zeta-phone":  {Address: "192.168.1.30"},
			"alpha-phone": {Address: "192.168.1.31", Mode: models.ModeTCP, Port: 62078},
		},
	}

	devices := cfg.DeviceList()
	require.Len(t, devices, 2)

	assert.Equal(t, "alpha-phone", devices[0].Name)
	assert.Equal(t, models.ModeTCP, devices[0].Mode)
	assert.Equal(t, 62078, devices[0].Port)

	assert.Equal(t, "zeta-phone", devices[1].Name)
	assert.Equal(t, models.ModeICMP, devices[1].Mode, "mode defaults to icmp")
}
