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

package config_test

import (
	"context"
	"fmt"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/confsync/confsyncd/pkg/config"
	"github.com/confsync/confsyncd/pkg/service/filesystem"
)

const fullConfigYAML = `
log_level: DEBUG
worker_threads: 4
dir: /data/confsync
config_service_url: http://config-service:8080
host:
  type: HostCidr
  cidr: 10.2.0.0/16
apps:
  - app_id: order-service
    cluster: production
    namespaces:
      - application
      - feature.json
  - app_id: billing
    namespaces:
      - application.properties
`

var _ = Describe("ParseStartupConfig", func() {
	It("parses a full config", func() {
		cfg, err := config.ParseStartupConfig([]byte(fullConfigYAML))
		Expect(err).ToNot(HaveOccurred())

		Expect(cfg.LogLevel).To(Equal("DEBUG"))
		Expect(cfg.WorkerThreads).To(Equal(4))
		Expect(cfg.Dir).To(Equal("/data/confsync"))
		Expect(cfg.ConfigServiceURL).To(Equal("http://config-service:8080"))

		Expect(cfg.Host).ToNot(BeNil())
		Expect(cfg.Host.Type).To(Equal(config.HostTypeHostCidr))
		Expect(cfg.Host.CIDR).To(Equal("10.2.0.0/16"))

		Expect(cfg.Apps).To(HaveLen(2))
		Expect(cfg.Apps[0].AppID).To(Equal("order-service"))
		Expect(cfg.Apps[0].Cluster).To(Equal("production"))
		Expect(cfg.Apps[0].Namespaces).To(Equal([]string{"application", "feature.json"}))
	})

	It("defaults log level to INFO and cluster to default", func() {
		cfg, err := config.ParseStartupConfig([]byte(`
dir: /data/confsync
config_service_url: http://config-service:8080
apps:
  - app_id: order-service
    namespaces: [application]
`))
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.LogLevel).To(Equal("INFO"))
		Expect(cfg.Apps[0].Cluster).To(Equal("default"))
	})

	It("accepts an empty app list", func() {
		cfg, err := config.ParseStartupConfig([]byte(`
dir: /data/confsync
config_service_url: http://config-service:8080
`))
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Apps).To(BeEmpty())
		Expect(cfg.Host).To(BeNil())
	})

	It("accepts zero worker_threads", func() {
		cfg, err := config.ParseStartupConfig([]byte("dir: /data\nconfig_service_url: http://cs:8080\nworker_threads: 0\n"))
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.WorkerThreads).To(Equal(0))
	})

	DescribeTable("rejects invalid configs",
		func(yamlDoc, wantSubstring string) {
			_, err := config.ParseStartupConfig([]byte(yamlDoc))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(wantSubstring))
		},
		Entry("missing dir",
			"config_service_url: http://config-service:8080\n", "dir is required"),
		Entry("missing config_service_url",
			"dir: /data\n", "config_service_url is required"),
		Entry("relative config_service_url",
			"dir: /data\nconfig_service_url: config-service\n", "absolute URL"),
		Entry("unknown log level",
			"dir: /data\nconfig_service_url: http://cs:8080\nlog_level: VERBOSE\n", "invalid log_level"),
		Entry("negative worker_threads",
			"dir: /data\nconfig_service_url: http://cs:8080\nworker_threads: -1\n", "worker_threads"),
		Entry("app without app_id",
			"dir: /data\nconfig_service_url: http://cs:8080\napps:\n  - namespaces: [application]\n", "app_id"),
		Entry("app without namespaces",
			"dir: /data\nconfig_service_url: http://cs:8080\napps:\n  - app_id: a\n", "no namespaces"),
		Entry("app with empty namespace name",
			"dir: /data\nconfig_service_url: http://cs:8080\napps:\n  - app_id: a\n    namespaces: [\"\"]\n", "empty namespace"),
	)

	Describe("host variants", func() {
		It("parses a HostName host", func() {
			cfg, err := config.ParseStartupConfig([]byte(`
dir: /data
config_service_url: http://cs:8080
host:
  type: HostName
`))
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Host.Type).To(Equal(config.HostTypeHostName))
		})

		It("parses a Custom host", func() {
			cfg, err := config.ParseStartupConfig([]byte(`
dir: /data
config_service_url: http://cs:8080
host:
  type: Custom
  custom: edge-gateway-7
`))
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Host.Type).To(Equal(config.HostTypeCustom))
			Expect(cfg.Host.Custom).To(Equal("edge-gateway-7"))
		})

		DescribeTable("rejects malformed host blocks",
			func(hostBlock, wantSubstring string) {
				doc := fmt.Sprintf("dir: /data\nconfig_service_url: http://cs:8080\nhost:\n%s", hostBlock)
				_, err := config.ParseStartupConfig([]byte(doc))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(wantSubstring))
			},
			Entry("unknown type", "  type: MacAddress\n", "unknown host type"),
			Entry("missing type", "  cidr: 10.0.0.0/8\n", "unknown host type"),
			Entry("HostCidr without cidr", "  type: HostCidr\n", "requires a cidr"),
			Entry("Custom without custom", "  type: Custom\n", "requires a custom"),
		)
	})
})

var _ = Describe("StartupConfig Clone", func() {
	It("returns an independent deep copy", func() {
		cfg, err := config.ParseStartupConfig([]byte(fullConfigYAML))
		Expect(err).ToNot(HaveOccurred())

		clone := cfg.Clone()
		clone.Apps[0].Namespaces[0] = "mutated"
		clone.Host.CIDR = "192.168.0.0/24"

		Expect(cfg.Apps[0].Namespaces[0]).To(Equal("application"))
		Expect(cfg.Host.CIDR).To(Equal("10.2.0.0/16"))
	})
})

var _ = Describe("FileConfigLoader", func() {
	var (
		ctx    context.Context
		mockFS *filesystem.MockFileSystem
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockFS = filesystem.NewMockFileSystem()
	})

	It("loads the config from the configured path", func() {
		mockFS.ReadFileFunc = func(_ context.Context, path string) ([]byte, error) {
			Expect(path).To(Equal("/etc/confsyncd.yaml"))
			return []byte(fullConfigYAML), nil
		}

		loader := config.NewFileConfigLoader().
			WithConfigPath("/etc/confsyncd.yaml").
			WithFileSystemService(mockFS)

		cfg, err := loader.Load(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Apps).To(HaveLen(2))
	})

	It("fails when the config file cannot be read", func() {
		mockFS.ReadFileFunc = func(_ context.Context, path string) ([]byte, error) {
			return nil, os.ErrNotExist
		}

		loader := config.NewFileConfigLoader().
			WithConfigPath("/etc/confsyncd.yaml").
			WithFileSystemService(mockFS)

		_, err := loader.Load(ctx)
		Expect(err).To(HaveOccurred())
	})

	It("fails when the file contains an invalid config", func() {
		mockFS.ReadFileFunc = func(_ context.Context, path string) ([]byte, error) {
			return []byte("dir: /data\n"), nil
		}

		loader := config.NewFileConfigLoader().
			WithConfigPath("/etc/confsyncd.yaml").
			WithFileSystemService(mockFS)

		_, err := loader.Load(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("config_service_url"))
	})
})
