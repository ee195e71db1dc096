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
	"fmt"
	"sort"
	"time"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
	"github.com/carverauto/presenced/pkg/notify"
)

var (
	errNoDevices              = fmt.Errorf("at least one device is required")
	errDeviceAddressRequired  = fmt.Errorf("device address is required")
	errDevicePortRequired     = fmt.Errorf("tcp probe mode requires a port")
	errUnknownProbeMode       = fmt.Errorf("unknown probe mode")
	errThresholdTooSmall      = fmt.Errorf("threshold must be at least 1")
	errIntervalRequired       = fmt.Errorf("poll interval must be positive")
	errTimeoutRequired        = fmt.Errorf("probe timeout must be positive")
	errTimeoutExceedsInterval = fmt.Errorf("probe timeout must be strictly less than the poll interval")
	errNotifierRequired       = fmt.Errorf("notifier configuration is required")
)

const (
	defaultPollInterval  = 30 * time.Second
	defaultProbeTimeout  = 5 * time.Second
	defaultHitThreshold  = 2
	defaultMissThreshold = 3
)

// DeviceConfig configures a single tracked device.
type DeviceConfig struct {
	Address string           `json:"address"`
	Mode    models.ProbeMode `json:"mode,omitempty"`
	Port    int              `json:"port,omitempty"`
}

// Config represents the daemon configuration.
type Config struct {
	Devices        map[string]DeviceConfig `json:"devices"`
	PollInterval   models.Duration         `json:"poll_interval"`
	ProbeTimeout   models.Duration         `json:"probe_timeout"`
	HitThreshold   int                     `json:"hit_threshold"`
	MissThreshold  int                     `json:"miss_threshold"`
	PrivilegedICMP bool                    `json:"privileged_icmp,omitempty"`
	Notifier       *notify.Config          `json:"notifier"`
	Logging        *logger.Config          `json:"logging,omitempty"`
}

// Validate implements config.Validator. Zero-valued thresholds and
// durations pick up defaults; anything malformed is fatal at startup.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return errNoDevices
	}

	for name, dev := range c.Devices {
		if dev.Address == "" {
			return fmt.Errorf("%w: device %q", errDeviceAddressRequired, name)
		}

		if dev.Mode == "" {
			dev.Mode = models.ModeICMP
			c.Devices[name] = dev
		}

		switch dev.Mode {
		case models.ModeICMP:
		case models.ModeTCP:
			if dev.Port <= 0 {
				return fmt.Errorf("%w: device %q", errDevicePortRequired, name)
			}
		default:
			return fmt.Errorf("%w: device %q has mode %q", errUnknownProbeMode, name, dev.Mode)
		}
	}

	if c.HitThreshold == 0 {
		c.HitThreshold = defaultHitThreshold
	}

	if c.MissThreshold == 0 {
		c.MissThreshold = defaultMissThreshold
	}

	if c.HitThreshold < 1 || c.MissThreshold < 1 {
		return errThresholdTooSmall
	}

	if time.Duration(c.PollInterval) == 0 {
		c.PollInterval = models.Duration(defaultPollInterval)
	}

	if time.Duration(c.PollInterval) < 0 {
		return errIntervalRequired
	}

	if time.Duration(c.ProbeTimeout) == 0 {
		c.ProbeTimeout = models.Duration(defaultProbeTimeout)
	}

	if time.Duration(c.ProbeTimeout) < 0 {
		return errTimeoutRequired
	}

	// Probe timeouts shorter than the interval keep cycles from stacking.
	if time.Duration(c.ProbeTimeout) >= time.Duration(c.PollInterval) {
		return errTimeoutExceedsInterval
	}

	if c.Notifier == nil {
		return errNotifierRequired
	}

	return c.Notifier.Validate()
}

// DeviceList materializes the configured devices in stable name order.
func (c *Config) DeviceList() []models.Device {
	devices := make([]models.Device, 0, len(c.Devices))

	for name, dev := range c.Devices {
		mode := dev.Mode
		if mode == "" {
			mode = models.ModeICMP
		}

		devices = append(devices, models.Device{
			Name:    name,
			Address: dev.Address,
			Port:    dev.Port,
			Mode:    mode,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })

	return devices
}
