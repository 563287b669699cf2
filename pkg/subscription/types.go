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

// Package subscription is the boundary to the remote configuration service.
// A Client yields, per watched application, an unbounded sequence of batches;
// polling cadence, reconnection and backoff live entirely inside the client.
// Consumers only read batches until the channel closes.
package subscription

import (
	"context"

	"github.com/confsync/confsyncd/pkg/targeting"
)

// WatchRequest declares one application subscription.
type WatchRequest struct {
	// AppID identifies the application at the remote service.
	AppID string

	// Cluster selects the release cohort cluster.
	Cluster string

	// Namespaces is the ordered list of namespaces to watch. Batch entries
	// preserve this order.
	Namespaces []string

	// Targeting is the resolved targeting value, or targeting.None.
	Targeting targeting.Value
}

// NamespaceSnapshot is the latest configuration of one namespace. It is
// consumed immediately by the materializer and never cached.
type NamespaceSnapshot struct {
	AppID          string            `json:"appId"`
	Cluster        string            `json:"cluster"`
	Namespace      string            `json:"namespaceName"`
	Configurations map[string]string `json:"configurations"`
	ReleaseKey     string            `json:"releaseKey"`
}

// Entry is the per-namespace outcome inside a batch: exactly one of Snapshot
// or Err is set.
type Entry struct {
	Namespace string
	Snapshot  *NamespaceSnapshot
	Err       error
}

// Batch is one delivery from the subscription stream: the latest outcome for
// every watched namespace of one application, in request order.
type Batch struct {
	AppID   string
	Entries []Entry
}

// Client is the subscription collaborator. Implementations own the wire
// protocol; the returned channel closes only when the stream ends (for the
// HTTP client: when ctx is cancelled).
type Client interface {
	Watch(ctx context.Context, req WatchRequest) (<-chan Batch, error)
}
