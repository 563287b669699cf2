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
	"sync"
)

// MockClient is a Client for tests: batches are pushed by hand and streams
// end when Close is called.
type MockClient struct {
	WatchFunc func(ctx context.Context, req WatchRequest) (<-chan Batch, error)

	mutex    sync.Mutex
	streams  map[string]chan Batch
	requests map[string]WatchRequest
}

// NewMockClient creates a new MockClient.
func NewMockClient() *MockClient {
	return &MockClient{
		streams:  make(map[string]chan Batch),
		requests: make(map[string]WatchRequest),
	}
}

// Watch returns a per-app channel that the test feeds via Push.
func (m *MockClient) Watch(ctx context.Context, req WatchRequest) (<-chan Batch, error) {
	if m.WatchFunc != nil {
		return m.WatchFunc(ctx, req)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	ch := make(chan Batch, 16)
	m.streams[req.AppID] = ch
	m.requests[req.AppID] = req

	return ch, nil
}

// Push delivers a batch on an app's stream.
func (m *MockClient) Push(appID string, batch Batch) {
	m.mutex.Lock()
	ch := m.streams[appID]
	m.mutex.Unlock()

	if ch != nil {
		ch <- batch
	}
}

// Close ends an app's stream, as the remote collaborator would on stream
// exhaustion.
func (m *MockClient) Close(appID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if ch, ok := m.streams[appID]; ok {
		close(ch)
		delete(m.streams, appID)
	}
}

// Request returns the watch request recorded for an app.
func (m *MockClient) Request(appID string) (WatchRequest, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	req, ok := m.requests[appID]
	return req, ok
}
