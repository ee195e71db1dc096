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

// Package lifecycle manages service startup and graceful shutdown.
package lifecycle

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/presenced/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Service is a long-running component driven by Run. Start blocks until
// the service stops; Stop asks it to wind down.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts the service and blocks until SIGINT/SIGTERM or until the
// service fails on its own. A signal-triggered shutdown returns nil so the
// process exits 0.
func Run(ctx context.Context, svc Service, log logger.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- svc.Start(sigCtx)
	}()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping service")
		return err
	}

	// Wait for Start to unwind; cancellation is the expected outcome here.
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info().Msg("Shutdown complete")

	return nil
}

// CreateComponentLogger creates a logger tagged for one component.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	return logger.NewComponent(component, config)
}
