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

package subscription

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/logger"
	"github.com/confsync/confsyncd/pkg/metrics"
)

// notification is one entry of the notifications long-poll exchange.
type notification struct {
	NamespaceName  string `json:"namespaceName"`
	NotificationID int64  `json:"notificationId"`
}

// HTTPClient implements Client against the config service's HTTP API:
// a notifications long-poll to learn about changes, and a configs endpoint
// to fetch full namespace snapshots.
type HTTPClient struct {
	baseURL *url.URL

	// pollClient holds long-poll requests; the server keeps them open for up
	// to ~60s, so its timeout is well above that.
	pollClient *http.Client

	// fetchClient retries transient transport failures on snapshot fetches.
	fetchClient *retryablehttp.Client

	logger *zap.SugaredLogger
}

// NewHTTPClient creates a client for the config service at baseURL.
// An unparsable URL is a fatal startup error for the daemon.
func NewHTTPClient(baseURL string) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid config service url %q: %w", baseURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("config service url %q must be absolute", baseURL)
	}

	log := logger.For(logger.ComponentSubscription)

	fetchClient := retryablehttp.NewClient()
	fetchClient.HTTPClient = &http.Client{Timeout: constants.ConfigFetchTimeout}
	fetchClient.RetryMax = 3
	fetchClient.RetryWaitMin = 1 * time.Second
	fetchClient.RetryWaitMax = 5 * time.Second
	fetchClient.Logger = &zapRetryLogger{logger: log}

	return &HTTPClient{
		baseURL:     parsed,
		pollClient:  &http.Client{Timeout: constants.NotificationPollTimeout},
		fetchClient: fetchClient,
		logger:      log,
	}, nil
}

// Watch opens one continuous subscription for an application. The returned
// channel yields a full batch after every observed change and closes when
// ctx is cancelled.
func (c *HTTPClient) Watch(ctx context.Context, req WatchRequest) (<-chan Batch, error) {
	if req.AppID == "" {
		return nil, fmt.Errorf("watch request requires an app id")
	}

	if len(req.Namespaces) == 0 {
		return nil, fmt.Errorf("watch request for %s declares no namespaces", req.AppID)
	}

	if req.Cluster == "" {
		req.Cluster = constants.DefaultCluster
	}

	ch := make(chan Batch)
	go c.run(ctx, req, ch)

	return ch, nil
}

func (c *HTTPClient) run(ctx context.Context, req WatchRequest, ch chan<- Batch) {
	defer close(ch)

	session := uuid.NewString()
	log := c.logger.With("app", req.AppID, "session", session)
	log.Infof("Starting subscription for %d namespaces", len(req.Namespaces))

	// Notification IDs start at -1, so the server answers the first poll
	// immediately with every namespace and the loop below delivers the
	// startup batch through the same path as any later change.
	notifIDs := make(map[string]int64, len(req.Namespaces))
	for _, ns := range req.Namespaces {
		notifIDs[ns] = -1
	}

	bo := newPollBackoff()

	for {
		if ctx.Err() != nil {
			log.Info("Subscription cancelled")
			return
		}

		changed, err := c.pollNotifications(ctx, req, notifIDs)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Subscription cancelled")
				return
			}

			wait := bo.NextBackOff()
			log.Warnf("Notification poll failed, retrying in %s: %v", wait, err)
			metrics.IncErrorCount(metrics.ComponentSubscription, req.AppID)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}

		bo.Reset()

		if len(changed) == 0 {
			// Long poll timed out with no change, poll again.
			continue
		}

		for _, n := range changed {
			notifIDs[n.NamespaceName] = n.NotificationID
		}
		log.Debugf("Change notification for %d namespace(s)", len(changed))

		if !c.deliver(ctx, ch, c.fetchBatch(ctx, req)) {
			return
		}
	}
}

// deliver sends a batch unless the watch has been cancelled.
func (c *HTTPClient) deliver(ctx context.Context, ch chan<- Batch, batch Batch) bool {
	select {
	case ch <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

// fetchBatch fetches a fresh snapshot for every watched namespace. Fetch
// failures surface as error entries; the batch itself is always produced.
func (c *HTTPClient) fetchBatch(ctx context.Context, req WatchRequest) Batch {
	batch := Batch{
		AppID:   req.AppID,
		Entries: make([]Entry, 0, len(req.Namespaces)),
	}

	for _, ns := range req.Namespaces {
		snapshot, err := c.fetchNamespace(ctx, req, ns)
		if err != nil {
			batch.Entries = append(batch.Entries, Entry{Namespace: ns, Err: err})
			continue
		}
		batch.Entries = append(batch.Entries, Entry{Namespace: ns, Snapshot: snapshot})
	}

	return batch
}

// fetchNamespace retrieves one namespace snapshot from the configs endpoint.
func (c *HTTPClient) fetchNamespace(ctx context.Context, req WatchRequest, namespace string) (*NamespaceSnapshot, error) {
	endpoint := c.baseURL.JoinPath("configs", req.AppID, req.Cluster, namespace)
	if req.Targeting != "" {
		query := endpoint.Query()
		query.Set("ip", string(req.Targeting))
		endpoint.RawQuery = query.Encode()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetchClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s/%s: %w", req.AppID, namespace, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config service returned %d for %s/%s", resp.StatusCode, req.AppID, namespace)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s/%s: %w", req.AppID, namespace, err)
	}

	var snapshot NamespaceSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s/%s: %w", req.AppID, namespace, err)
	}

	return &snapshot, nil
}

// pollNotifications performs one long-poll round. A 304 means nothing changed
// within the server's hold window and yields an empty slice.
func (c *HTTPClient) pollNotifications(ctx context.Context, req WatchRequest, notifIDs map[string]int64) ([]notification, error) {
	watched := make([]notification, 0, len(req.Namespaces))
	for _, ns := range req.Namespaces {
		watched = append(watched, notification{NamespaceName: ns, NotificationID: notifIDs[ns]})
	}

	encoded, err := json.Marshal(watched)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL.JoinPath("notifications", "v2")
	query := endpoint.Query()
	query.Set("appId", req.AppID)
	query.Set("cluster", req.Cluster)
	query.Set("notifications", string(encoded))
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.pollClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, nil
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		var changed []notification
		if err := json.Unmarshal(body, &changed); err != nil {
			return nil, fmt.Errorf("failed to decode notifications: %w", err)
		}

		return changed, nil
	default:
		return nil, fmt.Errorf("notifications endpoint returned %d", resp.StatusCode)
	}
}

// newPollBackoff builds the exponential backoff applied between failed
// long-poll rounds. It never gives up; reconnecting is this client's job.
func newPollBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = constants.SubscribeInitialBackoff
	bo.MaxInterval = constants.SubscribeMaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	return bo
}

// zapRetryLogger adapts the sugared logger to retryablehttp's Logger.
type zapRetryLogger struct {
	logger *zap.SugaredLogger
}

func (l *zapRetryLogger) Printf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}
