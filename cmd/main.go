// Copyright 2026 Confsync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/env"
	"github.com/confsync/confsyncd/pkg/logger"
	"github.com/confsync/confsyncd/pkg/metrics"
	"github.com/confsync/confsyncd/pkg/service/filesystem"
	"github.com/confsync/confsyncd/pkg/sink"
	"github.com/confsync/confsyncd/pkg/subscription"
	"github.com/confsync/confsyncd/pkg/targeting"
	"github.com/confsync/confsyncd/pkg/version"
	"github.com/confsync/confsyncd/pkg/watcher"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load the startup config. The logger is configured from it, so config
	// errors go straight to stderr.
	cfg, err := config.NewFileConfigLoader().Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "confsyncd: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.LogLevel)
	log := logger.For(logger.ComponentCore)
	defer func() {
		_ = logger.Sync()
	}()

	log.Infof("Starting confsyncd %s", version.GetAppVersion())

	if cfg.WorkerThreads > 0 {
		runtime.GOMAXPROCS(cfg.WorkerThreads)
		log.Debugf("GOMAXPROCS set to %d", cfg.WorkerThreads)
	}

	// Resolve the host identity once; every watch loop shares the result.
	target, err := targeting.Resolve(cfg.Host)
	if err != nil {
		log.Errorf("Failed to resolve host identity: %v", err)
		os.Exit(1)
	}

	client, err := subscription.NewHTTPClient(cfg.ConfigServiceURL)
	if err != nil {
		log.Errorf("Failed to create subscription client: %v", err)
		os.Exit(1)
	}

	// Start the metrics/health endpoint.
	metricsPort, _ := env.GetAsInt("METRICS_PORT", false, constants.DefaultMetricsPort)
	server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", metricsPort))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to shutdown metrics server: %v", err)
		}
	}()

	snk := sink.New(cfg.Dir, filesystem.NewDefaultService())

	supervisor := watcher.NewSupervisor(cfg, target, client, snk)
	metrics.RegisterStatusProvider("watchers", supervisor)
	defer metrics.UnregisterStatusProvider("watchers")

	// Cancel all watch loops on SIGINT/SIGTERM.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Received termination signal, shutting down")
		cancel()
	}()

	if err := supervisor.Run(ctx); err != nil {
		log.Errorf("Supervisor failed: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}

	log.Info("confsyncd completed")
}
