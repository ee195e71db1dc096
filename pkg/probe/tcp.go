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

package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

const defaultTCPTimeout = 5 * time.Second

// TCPProber probes devices by dialing a configured TCP port. A completed
// handshake proves the host is up; so does an immediate RST, since only a
// live host refuses a connection.
type TCPProber struct {
	timeout time.Duration
	logger  logger.Logger
}

var _ Prober = (*TCPProber)(nil)

// NewTCPProber creates a new TCP prober.
func NewTCPProber(timeout time.Duration, log logger.Logger) *TCPProber {
	if timeout == 0 {
		timeout = defaultTCPTimeout
	}

	return &TCPProber{
		timeout: timeout,
		logger:  log,
	}
}

func (p *TCPProber) Probe(ctx context.Context, device models.Device) models.ProbeResult {
	result := models.ProbeResult{Device: device}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()

	var dialer net.Dialer

	conn, err := dialer.DialContext(probeCtx, "tcp", net.JoinHostPort(device.Address, strconv.Itoa(device.Port)))

	result.RespTime = time.Since(start)

	if err == nil {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Error().Err(closeErr).Msg("failed to close connection")
		}

		result.Reachable = true

		return result
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		result.Reachable = true
		return result
	}

	if probeCtx.Err() != nil {
		result.Err = ErrProbeTimeout
		return result
	}

	result.Err = err

	return result
}
