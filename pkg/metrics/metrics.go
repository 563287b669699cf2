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

package metrics

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/confsync/confsyncd/pkg/logger"
)

const (
	// Component labels.
	ComponentWatcher      = "watcher"
	ComponentSubscription = "subscription"
	ComponentSink         = "sink"
	ComponentFilesystem   = "filesystem"
)

var (
	// Namespace and subsystem for all metrics.
	namespace = "confsync"
	subsystem = "daemon"

	// Error counters.
	errorCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_total",
			Help:      "Total number of errors encountered by component",
		},
		[]string{"component", "app"},
	)

	// Watch pipeline counters.
	batchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "batches_processed_total",
			Help:      "Total number of subscription batches processed per application",
		},
		[]string{"app"},
	)

	namespacesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "namespaces_materialized_total",
			Help:      "Total number of namespace snapshots materialized to disk",
		},
		[]string{"app", "namespace"},
	)

	namespaceErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "namespace_errors_total",
			Help:      "Total number of per-namespace failures (upstream or local)",
		},
		[]string{"app", "namespace"},
	)

	// Filesystem operation metrics.
	filesystemOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_total",
			Help:      "Total number of filesystem operations by type and path",
		},
		[]string{"operation", "path", "status"},
	)

	filesystemOpsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filesystem_ops_duration_seconds",
			Help:      "Duration of filesystem operations in seconds",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// IncErrorCount increments the error counter for a component/app pair.
func IncErrorCount(component, app string) {
	errorCounter.WithLabelValues(component, app).Inc()
}

// IncBatchesProcessed counts one processed batch for an application.
func IncBatchesProcessed(app string) {
	batchesProcessed.WithLabelValues(app).Inc()
}

// IncNamespaceMaterialized counts one successful materialization.
func IncNamespaceMaterialized(app, ns string) {
	namespacesMaterialized.WithLabelValues(app, ns).Inc()
}

// IncNamespaceError counts one per-namespace failure.
func IncNamespaceError(app, ns string) {
	namespaceErrors.WithLabelValues(app, ns).Inc()
}

// RecordFilesystemOp records one filesystem operation.
func RecordFilesystemOp(op, path, status string, duration time.Duration) {
	filesystemOpsTotal.WithLabelValues(op, path, status).Inc()
	filesystemOpsDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// StatusProvider exposes a JSON-serializable view of a component's state for
// the /status endpoint.
type StatusProvider interface {
	GetStatus() interface{}
}

var statusRegistry struct {
	providers map[string]StatusProvider
	mu        sync.RWMutex
}

// RegisterStatusProvider registers a status provider under the given name.
func RegisterStatusProvider(name string, provider StatusProvider) {
	statusRegistry.mu.Lock()
	defer statusRegistry.mu.Unlock()

	if statusRegistry.providers == nil {
		statusRegistry.providers = make(map[string]StatusProvider)
	}

	statusRegistry.providers[name] = provider
}

// UnregisterStatusProvider removes a status provider.
func UnregisterStatusProvider(name string) {
	statusRegistry.mu.Lock()
	defer statusRegistry.mu.Unlock()

	delete(statusRegistry.providers, name)
}

func handleStatus(c *gin.Context) {
	statusRegistry.mu.RLock()
	defer statusRegistry.mu.RUnlock()

	response := make(map[string]interface{}, len(statusRegistry.providers))
	for name, provider := range statusRegistry.providers {
		response[name] = provider.GetStatus()
	}

	c.IndentedJSON(http.StatusOK, response)
}

// SetupMetricsEndpoint starts an HTTP server exposing /metrics, /health and
// /status. This should be called once at application startup.
func SetupMetricsEndpoint(addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/status", handleStatus)

	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.For(logger.ComponentMetrics).Errorf("Metrics server failed: %v", err)
		}
	}()

	return server
}
