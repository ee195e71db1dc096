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

// Package poller drives periodic probe cycles over the configured devices.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
	"github.com/carverauto/presenced/pkg/probe"
	"github.com/carverauto/presenced/pkg/tracker"
)

// Poller runs an unending fixed-period cycle: probe every device
// concurrently, join the results, feed them to the tracker from a single
// control point, and hand every confirmed transition to the dispatcher
// before the next cycle's probes begin.
type Poller struct {
	config     Config
	devices    []models.Device
	prober     probe.Prober
	tracker    *tracker.DeviceTracker
	dispatcher Dispatcher
	clock      Clock
	ticker     Ticker
	done       chan struct{}
	closeOnce  sync.Once
	logger     logger.Logger
}

// New creates a poller instance. A nil clock defaults to the real clock.
func New(config *Config, prober probe.Prober, trk *tracker.DeviceTracker, dispatcher Dispatcher, clock Clock, log logger.Logger) *Poller {
	if clock == nil {
		clock = realClock{}
	}

	return &Poller{
		config:     *config,
		devices:    config.DeviceList(),
		prober:     prober,
		tracker:    trk,
		dispatcher: dispatcher,
		clock:      clock,
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Start implements the lifecycle.Service interface. It blocks until the
// context is cancelled or Stop is called. Probe failures never terminate
// the loop; they are observations for the hysteresis logic.
func (p *Poller) Start(ctx context.Context) error {
	interval := time.Duration(p.config.PollInterval)
	p.ticker = p.clock.Ticker(interval)

	defer p.ticker.Stop()

	p.logger.Info().
		Dur("interval", interval).
		Int("devices", len(p.devices)).
		Msg("Starting presence poller")

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-p.ticker.Chan():
			p.runCycle(ctx)
		}
	}
}

// Stop implements the lifecycle.Service interface.
func (p *Poller) Stop(_ context.Context) error {
	p.closeOnce.Do(func() {
		close(p.done)
	})

	return nil
}

// runCycle executes one probe cycle. Cycles run inline on the scheduling
// loop, so results are always committed before the next cycle begins and
// the tracker never sees concurrent writers.
func (p *Poller) runCycle(ctx context.Context) {
	results := p.probeAll(ctx)

	// A cancelled cycle is abandoned whole: no partial state mutation.
	if ctx.Err() != nil {
		return
	}

	transitions := make([]models.StateTransition, 0, len(results))
	reachable := 0

	for _, result := range results {
		if result.Err != nil {
			p.logger.Debug().
				Err(result.Err).
				Str("device", result.Device.Name).
				Msg("Probe failed, treating as unreachable")
		}

		if result.Reachable {
			reachable++
		}

		if event := p.tracker.RecordProbe(result.Device.Name, result.Reachable); event != nil {
			transitions = append(transitions, *event)
		}
	}

	for _, event := range transitions {
		p.dispatcher.OnTransition(ctx, event)
	}

	p.logger.Debug().
		Int("reachable", reachable).
		Int("probed", len(results)).
		Int("transitions", len(transitions)).
		Msg("Poll cycle completed")
}

// probeAll issues one probe per device concurrently and joins them. One
// slow or failing probe never delays the others beyond its own timeout,
// and a device is never probed twice within a cycle.
func (p *Poller) probeAll(ctx context.Context) []models.ProbeResult {
	resultCh := make(chan models.ProbeResult, len(p.devices))

	var wg sync.WaitGroup

	for _, device := range p.devices {
		wg.Add(1)

		go func(d models.Device) {
			defer wg.Done()

			resultCh <- p.prober.Probe(ctx, d)
		}(device)
	}

	wg.Wait()
	close(resultCh)

	byName := make(map[string]models.ProbeResult, len(p.devices))
	for result := range resultCh {
		byName[result.Device.Name] = result
	}

	// Commit in stable device order so per-device event ordering follows
	// cycle order regardless of probe completion order.
	results := make([]models.ProbeResult, 0, len(p.devices))
	for _, device := range p.devices {
		results = append(results, byName[device.Name])
	}

	return results
}
