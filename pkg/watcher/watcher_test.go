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

package watcher_test

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/service/filesystem"
	"github.com/confsync/confsyncd/pkg/sink"
	"github.com/confsync/confsyncd/pkg/subscription"
	"github.com/confsync/confsyncd/pkg/watcher"
)

func snapshotEntry(namespace string, configurations map[string]string) subscription.Entry {
	return subscription.Entry{
		Namespace: namespace,
		Snapshot: &subscription.NamespaceSnapshot{
			AppID:          "order-service",
			Cluster:        "default",
			Namespace:      namespace,
			Configurations: configurations,
		},
	}
}

var _ = Describe("AppWatcher", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		client *subscription.MockClient
		mockFS *filesystem.MockFileSystem
		snk    *sink.Sink
		app    config.AppSpec
		w      *watcher.AppWatcher
		done   chan error
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		client = subscription.NewMockClient()
		mockFS = filesystem.NewMockFileSystem()
		snk = sink.New("/data/configs", mockFS)
		app = config.AppSpec{
			AppID:      "order-service",
			Cluster:    "default",
			Namespaces: []string{"application", "feature.json"},
		}
		w = watcher.NewAppWatcher(app, "10.2.3.4", client, snk)
		done = make(chan error, 1)
	})

	AfterEach(func() {
		cancel()
	})

	startWatcher := func() {
		go func() {
			done <- w.Run(ctx)
		}()

		// Wait until the subscription is open before pushing batches.
		Eventually(func() bool {
			_, ok := client.Request("order-service")
			return ok
		}).Should(BeTrue())
	}

	It("passes the app declaration and targeting to the subscription", func() {
		startWatcher()

		req, ok := client.Request("order-service")
		Expect(ok).To(BeTrue())
		Expect(req.AppID).To(Equal("order-service"))
		Expect(req.Cluster).To(Equal("default"))
		Expect(req.Namespaces).To(Equal([]string{"application", "feature.json"}))
		Expect(string(req.Targeting)).To(Equal("10.2.3.4"))

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
	})

	It("materializes every namespace of a batch", func() {
		startWatcher()

		client.Push("order-service", subscription.Batch{
			AppID: "order-service",
			Entries: []subscription.Entry{
				snapshotEntry("application", map[string]string{"server.port": "8080"}),
				snapshotEntry("feature.json", map[string]string{"content": `{"enabled": true}`}),
			},
		})

		Eventually(func() bool {
			_, ok := mockFS.FileContent("/data/configs/order-service/application.properties")
			return ok
		}).Should(BeTrue())

		feature, ok := mockFS.FileContent("/data/configs/order-service/feature.json")
		Expect(ok).To(BeTrue())
		Expect(string(feature)).To(Equal(`{"enabled": true}`))

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
	})

	It("overwrites files on subsequent batches", func() {
		startWatcher()

		client.Push("order-service", subscription.Batch{
			AppID:   "order-service",
			Entries: []subscription.Entry{snapshotEntry("feature.json", map[string]string{"content": "v1"})},
		})
		Eventually(func() string {
			content, _ := mockFS.FileContent("/data/configs/order-service/feature.json")
			return string(content)
		}).Should(Equal("v1"))

		client.Push("order-service", subscription.Batch{
			AppID:   "order-service",
			Entries: []subscription.Entry{snapshotEntry("feature.json", map[string]string{"content": "v2"})},
		})
		Eventually(func() string {
			content, _ := mockFS.FileContent("/data/configs/order-service/feature.json")
			return string(content)
		}).Should(Equal("v2"))

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
	})

	It("skips a namespace with an upstream error and still processes its siblings", func() {
		startWatcher()

		client.Push("order-service", subscription.Batch{
			AppID: "order-service",
			Entries: []subscription.Entry{
				{Namespace: "application", Err: errors.New("config service returned 500")},
				snapshotEntry("feature.json", map[string]string{"content": "still here"}),
			},
		})

		Eventually(func() string {
			content, _ := mockFS.FileContent("/data/configs/order-service/feature.json")
			return string(content)
		}).Should(Equal("still here"))

		_, ok := mockFS.FileContent("/data/configs/order-service/application.properties")
		Expect(ok).To(BeFalse())

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
	})

	It("abandons the rest of a batch on a write failure but keeps the loop alive", func() {
		startWatcher()

		mockFS.WriteFileFunc = func(_ context.Context, _ string, _ []byte, _ os.FileMode) error {
			return errors.New("disk full")
		}

		client.Push("order-service", subscription.Batch{
			AppID: "order-service",
			Entries: []subscription.Entry{
				snapshotEntry("application", map[string]string{"server.port": "8080"}),
				snapshotEntry("feature.json", map[string]string{"content": "never written"}),
			},
		})

		// The failed write abandons the remainder of that batch.
		Consistently(func() bool {
			_, ok := mockFS.FileContent("/data/configs/order-service/feature.json")
			return ok
		}, "200ms").Should(BeFalse())

		// Restore the default write path; the channel push below orders this
		// before the watcher reads it.
		mockFS.WriteFileFunc = nil
		client.Push("order-service", subscription.Batch{
			AppID:   "order-service",
			Entries: []subscription.Entry{snapshotEntry("feature.json", map[string]string{"content": "recovered"})},
		})

		Eventually(func() string {
			content, _ := mockFS.FileContent("/data/configs/order-service/feature.json")
			return string(content)
		}).Should(Equal("recovered"))

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
	})

	It("materializes the canonical order-service example end to end", func() {
		etcSink := sink.New("/etc/conf", mockFS)
		ew := watcher.NewAppWatcher(config.AppSpec{
			AppID:      "order-service",
			Cluster:    "default",
			Namespaces: []string{"application.properties", "feature.json"},
		}, "", client, etcSink)

		endToEndDone := make(chan error, 1)
		go func() {
			endToEndDone <- ew.Run(ctx)
		}()
		Eventually(func() bool {
			_, ok := client.Request("order-service")
			return ok
		}).Should(BeTrue())

		client.Push("order-service", subscription.Batch{
			AppID: "order-service",
			Entries: []subscription.Entry{
				snapshotEntry("application.properties", map[string]string{"db.url": "jdbc:mysql://h/d"}),
				snapshotEntry("feature.json", map[string]string{"content": `{"flag":true}`}),
			},
		})

		Eventually(func() string {
			content, _ := mockFS.FileContent("/etc/conf/order-service/application.properties")
			return string(content)
		}).Should(ContainSubstring("db.url = jdbc:mysql://h/d"))

		feature, ok := mockFS.FileContent("/etc/conf/order-service/feature.json")
		Expect(ok).To(BeTrue())
		Expect(string(feature)).To(Equal(`{"flag":true}`))

		client.Close("order-service")
		Eventually(endToEndDone).Should(Receive(BeNil()))
	})

	It("terminates when the stream ends", func() {
		startWatcher()

		Expect(w.State()).To(Equal(watcher.StateSubscribing))

		client.Close("order-service")
		Eventually(done).Should(Receive(BeNil()))
		Expect(w.State()).To(Equal(watcher.StateTerminated))
	})

	It("returns the error when the subscription cannot be opened", func() {
		client.WatchFunc = func(_ context.Context, _ subscription.WatchRequest) (<-chan subscription.Batch, error) {
			return nil, errors.New("connection refused")
		}

		err := w.Run(ctx)
		Expect(err).To(HaveOccurred())
		Expect(w.State()).To(Equal(watcher.StateTerminated))
	})
})
