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

// Package watcher drives the watch-and-materialize pipeline: one loop per
// application consuming its subscription stream and materializing every
// received namespace snapshot to disk.
package watcher

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/logger"
	"github.com/confsync/confsyncd/pkg/materialize"
	"github.com/confsync/confsyncd/pkg/metrics"
	"github.com/confsync/confsyncd/pkg/sink"
	"github.com/confsync/confsyncd/pkg/subscription"
	"github.com/confsync/confsyncd/pkg/targeting"
)

// Watcher states.
const (
	StateSubscribing     = "subscribing"
	StateProcessingBatch = "processing_batch"
	StateTerminated      = "terminated"
)

// Watcher events.
const (
	eventBatchReceived = "batch_received"
	eventBatchDone     = "batch_done"
	eventStreamEnded   = "stream_ended"
)

// AppWatcher runs the continuous subscription for one application. It owns
// its stream and processes batches strictly in arrival order; it shares no
// mutable state with sibling watchers.
type AppWatcher struct {
	app       config.AppSpec
	targeting targeting.Value
	client    subscription.Client
	sink      *sink.Sink
	machine   *fsm.FSM
	logger    *zap.SugaredLogger
}

// NewAppWatcher creates a watcher for one declared application.
func NewAppWatcher(app config.AppSpec, target targeting.Value, client subscription.Client, snk *sink.Sink) *AppWatcher {
	machine := fsm.NewFSM(
		StateSubscribing,
		fsm.Events{
			{Name: eventBatchReceived, Src: []string{StateSubscribing}, Dst: StateProcessingBatch},
			{Name: eventBatchDone, Src: []string{StateProcessingBatch}, Dst: StateSubscribing},
			{Name: eventStreamEnded, Src: []string{StateSubscribing, StateProcessingBatch}, Dst: StateTerminated},
		},
		fsm.Callbacks{},
	)

	return &AppWatcher{
		app:       app,
		targeting: target,
		client:    client,
		sink:      snk,
		machine:   machine,
		logger:    logger.For(logger.ComponentWatcher).With("app", app.AppID),
	}
}

// AppID returns the watched application id.
func (w *AppWatcher) AppID() string {
	return w.app.AppID
}

// State returns the watcher's current state.
func (w *AppWatcher) State() string {
	return w.machine.Current()
}

// Run consumes the subscription stream until it ends. Batch-level failures
// never escape this loop; the only way out is stream exhaustion (or a failure
// to open the subscription in the first place).
func (w *AppWatcher) Run(ctx context.Context) error {
	stream, err := w.client.Watch(ctx, subscription.WatchRequest{
		AppID:      w.app.AppID,
		Cluster:    w.app.Cluster,
		Namespaces: w.app.Namespaces,
		Targeting:  w.targeting,
	})
	if err != nil {
		_ = w.machine.Event(ctx, eventStreamEnded)
		return err
	}

	w.logger.Infof("Watching %d namespace(s)", len(w.app.Namespaces))

	for batch := range stream {
		_ = w.machine.Event(ctx, eventBatchReceived)
		w.processBatch(ctx, batch)
		_ = w.machine.Event(ctx, eventBatchDone)
	}

	_ = w.machine.Event(ctx, eventStreamEnded)
	w.logger.Info("Subscription stream ended, watch terminated")

	return nil
}

// processBatch is the failure-isolation boundary around exactly one batch.
// An upstream error value for a namespace skips that namespace only; a local
// materialization or write failure abandons the remainder of the batch. Both
// are logged and neither stops the loop - the next batch starts clean.
func (w *AppWatcher) processBatch(ctx context.Context, batch subscription.Batch) {
	metrics.IncBatchesProcessed(w.app.AppID)

	for _, entry := range batch.Entries {
		if entry.Err != nil {
			w.logger.Errorf("Upstream error for namespace %s: %v", entry.Namespace, entry.Err)
			metrics.IncNamespaceError(w.app.AppID, entry.Namespace)
			continue
		}

		if err := w.materializeEntry(ctx, entry); err != nil {
			w.logger.Errorf("Failed to materialize namespace %s, skipping rest of batch: %v", entry.Namespace, err)
			metrics.IncNamespaceError(w.app.AppID, entry.Namespace)
			metrics.IncErrorCount(metrics.ComponentWatcher, w.app.AppID)

			return
		}

		metrics.IncNamespaceMaterialized(w.app.AppID, entry.Namespace)
	}
}

// materializeEntry turns one namespace snapshot into its on-disk file.
func (w *AppWatcher) materializeEntry(ctx context.Context, entry subscription.Entry) error {
	filename, content, err := materialize.Materialize(entry.Snapshot.Namespace, entry.Snapshot.Configurations)
	if err != nil {
		return err
	}

	appID := entry.Snapshot.AppID
	if appID == "" {
		appID = w.app.AppID
	}

	return w.sink.Write(ctx, appID, filename, content)
}
