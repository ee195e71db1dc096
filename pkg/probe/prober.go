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

// Package probe implements reachability checks for tracked devices.
package probe

import (
	"context"
	"errors"
	"time"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

var (
	ErrUnsupportedMode = errors.New("unsupported probe mode")
	ErrInvalidAddress  = errors.New("invalid device address")
	ErrProbeTimeout    = errors.New("probe timed out")
)

// Prober checks whether a device is reachable right now. Implementations
// must return within the configured timeout and honor ctx cancellation;
// they never block past either.
type Prober interface {
	Probe(ctx context.Context, device models.Device) models.ProbeResult
}

// modeProber fans a probe out to the per-mode implementation.
type modeProber struct {
	probers map[models.ProbeMode]Prober
}

// NewProber creates a Prober that dispatches on the device's probe mode.
func NewProber(timeout time.Duration, privileged bool, log logger.Logger) (Prober, error) {
	icmpProber, err := NewICMPProber(timeout, privileged, log)
	if err != nil {
		return nil, err
	}

	return &modeProber{
		probers: map[models.ProbeMode]Prober{
			models.ModeICMP: icmpProber,
			models.ModeTCP:  NewTCPProber(timeout, log),
		},
	}, nil
}

func (m *modeProber) Probe(ctx context.Context, device models.Device) models.ProbeResult {
	p, ok := m.probers[device.Mode]
	if !ok {
		return models.ProbeResult{
			Device: device,
			Err:    ErrUnsupportedMode,
		}
	}

	return p.Probe(ctx, device)
}
