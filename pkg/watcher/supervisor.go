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

package watcher

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/logger"
	"github.com/confsync/confsyncd/pkg/metrics"
	"github.com/confsync/confsyncd/pkg/sink"
	"github.com/confsync/confsyncd/pkg/subscription"
	"github.com/confsync/confsyncd/pkg/targeting"
)

// Supervisor fans out one AppWatcher per declared application and keeps the
// process alive while any of them run.
type Supervisor struct {
	sink     *sink.Sink
	watchers []*AppWatcher
	logger   *zap.SugaredLogger
}

// NewSupervisor builds watchers for every declared application. The resolved
// targeting value and the sink are shared read-only across all of them. The
// config is deep-copied so the watchers, which hold it for the process
// lifetime, never alias the caller's struct.
func NewSupervisor(cfg config.StartupConfig, target targeting.Value, client subscription.Client, snk *sink.Sink) *Supervisor {
	cfg = cfg.Clone()

	watchers := make([]*AppWatcher, 0, len(cfg.Apps))
	for _, app := range cfg.Apps {
		watchers = append(watchers, NewAppWatcher(app, target, client, snk))
	}

	return &Supervisor{
		sink:     snk,
		watchers: watchers,
		logger:   logger.For(logger.ComponentSupervisor),
	}
}

// Run creates the output base directory and runs all watchers until every
// stream has ended. A watcher failure is logged and never propagates to
// siblings. With no declared applications, Run returns right after directory
// creation.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.sink.EnsureBaseDirectory(ctx); err != nil {
		return err
	}

	if len(s.watchers) == 0 {
		s.logger.Warn("No applications declared, nothing to watch")
		return nil
	}

	s.logger.Infof("Starting %d watch loop(s)", len(s.watchers))

	g, gctx := errgroup.WithContext(ctx)

	for _, w := range s.watchers {
		w := w
		g.Go(func() error {
			if err := w.Run(gctx); err != nil {
				// Isolation: one app's failure must not cancel its siblings,
				// so errors stop at this boundary.
				s.logger.Errorf("Watch loop for %s failed: %v", w.AppID(), err)
				metrics.IncErrorCount(metrics.ComponentWatcher, w.AppID())
			}
			return nil
		})
	}

	return g.Wait()
}

// GetStatus implements metrics.StatusProvider with the per-app watcher states.
func (s *Supervisor) GetStatus() interface{} {
	states := make(map[string]string, len(s.watchers))
	for _, w := range s.watchers {
		states[w.AppID()] = w.State()
	}

	return states
}
