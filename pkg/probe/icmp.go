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
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/models"
)

const (
	protocolICMP       = 1 // IANA protocol number for ICMPv4
	defaultICMPTimeout = 5 * time.Second
	maxPacketSize      = 1500
)

var echoPayload = []byte("presenced")

// ICMPProber probes devices with an ICMPv4 echo request per probe.
// In privileged mode it uses a raw socket ("ip4:icmp"); otherwise an
// unprivileged datagram socket ("udp4"), which on Linux requires the
// process group to be within net.ipv4.ping_group_range.
type ICMPProber struct {
	timeout    time.Duration
	privileged bool
	identifier int
	seq        atomic.Uint32
	logger     logger.Logger
}

var _ Prober = (*ICMPProber)(nil)

// NewICMPProber creates a new ICMP prober.
func NewICMPProber(timeout time.Duration, privileged bool, log logger.Logger) (*ICMPProber, error) {
	if timeout == 0 {
		timeout = defaultICMPTimeout
	}

	return &ICMPProber{
		timeout:    timeout,
		privileged: privileged,
		identifier: os.Getpid() & 0xffff,
		logger:     log,
	}, nil
}

func (p *ICMPProber) Probe(ctx context.Context, device models.Device) models.ProbeResult {
	result := models.ProbeResult{Device: device}

	ip, err := resolveIPv4(device.Address)
	if err != nil {
		result.Err = err
		return result
	}

	network, listenAddr := "udp4", ""
	if p.privileged {
		network, listenAddr = "ip4:icmp", "0.0.0.0"
	}

	conn, err := icmp.ListenPacket(network, listenAddr)
	if err != nil {
		result.Err = err
		return result
	}

	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			p.logger.Error().Err(closeErr).Msg("failed to close ICMP socket")
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Cancellation abandons the probe immediately rather than waiting
	// out the read deadline.
	stop := context.AfterFunc(probeCtx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	seq := int(p.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{
			ID:   p.identifier,
			Seq:  seq,
			Data: echoPayload,
		},
	}

	wb, err := msg.Marshal(nil)
	if err != nil {
		result.Err = err
		return result
	}

	start := time.Now()

	if err := conn.SetReadDeadline(start.Add(p.timeout)); err != nil {
		result.Err = err
		return result
	}

	if _, err := conn.WriteTo(wb, p.destination(ip)); err != nil {
		result.Err = err
		result.RespTime = time.Since(start)

		return result
	}

	return p.awaitReply(conn, ip, seq, start, result)
}

// awaitReply reads replies until the matching echo response arrives or the
// deadline expires. Unrelated ICMP traffic on the socket is skipped.
func (p *ICMPProber) awaitReply(
	conn *icmp.PacketConn, ip net.IP, seq int, start time.Time, result models.ProbeResult) models.ProbeResult {
	rb := make([]byte, maxPacketSize)

	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			result.RespTime = time.Since(start)

			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				result.Err = ErrProbeTimeout
			} else {
				result.Err = err
			}

			return result
		}

		if !peerIs(peer, ip) {
			continue
		}

		msg, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil {
			continue
		}

		if msg.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		// Unprivileged sockets rewrite the echo ID, so match on sequence.
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}

		result.Reachable = true
		result.RespTime = time.Since(start)

		return result
	}
}

func (p *ICMPProber) destination(ip net.IP) net.Addr {
	if p.privileged {
		return &net.IPAddr{IP: ip}
	}

	return &net.UDPAddr{IP: ip}
}

func peerIs(peer net.Addr, ip net.IP) bool {
	switch a := peer.(type) {
	case *net.UDPAddr:
		return a.IP.Equal(ip)
	case *net.IPAddr:
		return a.IP.Equal(ip)
	default:
		return false
	}
}

func resolveIPv4(address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		if ip.To4() == nil {
			return nil, ErrInvalidAddress
		}

		return ip, nil
	}

	addr, err := net.ResolveIPAddr("ip4", address)
	if err != nil {
		return nil, err
	}

	return addr.IP, nil
}
