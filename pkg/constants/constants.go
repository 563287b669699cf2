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

package constants

import (
	"os"
	"time"
)

const (
	// DefaultConfigPath is the default path to the startup config file.
	// Overridable via the CONFIG_PATH environment variable.
	DefaultConfigPath = "/data/confsyncd.yaml"

	// DefaultMetricsPort is the port the metrics/health endpoint listens on
	// unless METRICS_PORT is set.
	DefaultMetricsPort = 8080

	// DefaultCluster is the release cohort cluster used when an app does not
	// declare one.
	DefaultCluster = "default"
)

const (
	// NotificationPollTimeout is the client-side timeout for one long-poll
	// request against the notifications endpoint. The server holds the
	// request for up to ~60s, so this must be comfortably above that.
	NotificationPollTimeout = 90 * time.Second

	// ConfigFetchTimeout bounds a single namespace snapshot fetch.
	ConfigFetchTimeout = 30 * time.Second

	// SubscribeInitialBackoff and SubscribeMaxBackoff bound the exponential
	// backoff applied between failed long-poll rounds.
	SubscribeInitialBackoff = 1 * time.Second
	SubscribeMaxBackoff     = 2 * time.Minute
)

const (
	// MaterializedFileMode is the permission mode of materialized config files.
	MaterializedFileMode os.FileMode = 0644

	// OutputDirMode is the permission mode of created output directories.
	OutputDirMode os.FileMode = 0755
)
