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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/carverauto/presenced/pkg/config"
	"github.com/carverauto/presenced/pkg/lifecycle"
	"github.com/carverauto/presenced/pkg/logger"
	"github.com/carverauto/presenced/pkg/notify"
	"github.com/carverauto/presenced/pkg/poller"
	"github.com/carverauto/presenced/pkg/probe"
	"github.com/carverauto/presenced/pkg/tracker"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/presenced/presenced.json", "Path to presenced config file")
	flag.Parse()

	ctx := context.Background()

	cfgLoader := config.NewConfig(nil)

	var cfg poller.Config

	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	daemonLogger, err := lifecycle.CreateComponentLogger("presenced", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	prober, err := probe.NewProber(time.Duration(cfg.ProbeTimeout), cfg.PrivilegedICMP, daemonLogger)
	if err != nil {
		return fmt.Errorf("failed to create prober: %w", err)
	}

	publisher, err := notify.NewPublisher(ctx, cfg.Notifier, daemonLogger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if closeErr := publisher.Close(closeCtx); closeErr != nil {
			daemonLogger.Error().Err(closeErr).Msg("Error closing publisher")
		}
	}()

	trk := tracker.New(cfg.DeviceList(), cfg.HitThreshold, cfg.MissThreshold, nil, daemonLogger)
	dispatcher := notify.NewDispatcher(publisher, cfg.Notifier.TopicPrefix, daemonLogger)

	// nil clock defaults to the real clock
	p := poller.New(&cfg, prober, trk, dispatcher, nil, daemonLogger)

	return lifecycle.Run(ctx, p, daemonLogger)
}
