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

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"

	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/logger"
)

// StartupConfig is the daemon's own configuration, loaded once at startup and
// immutable afterwards.
type StartupConfig struct {
	// LogLevel is one of OFF, ERROR, WARN, INFO, DEBUG or TRACE. Defaults to INFO.
	LogLevel string `yaml:"log_level"`

	// WorkerThreads caps GOMAXPROCS when set. Zero means "leave the runtime alone".
	WorkerThreads int `yaml:"worker_threads"`

	// Dir is the base directory materialized files are written under. Used as-is.
	Dir string `yaml:"dir"`

	// ConfigServiceURL is the base URL of the remote configuration service.
	ConfigServiceURL string `yaml:"config_service_url"`

	// Host selects the targeting identity sent with every subscription request.
	Host *HostConfig `yaml:"host"`

	// Apps is the ordered list of applications to watch. May be empty, in
	// which case the daemon starts, creates Dir and exits.
	Apps []AppSpec `yaml:"apps"`
}

// AppSpec declares one application and the namespaces to watch for it.
type AppSpec struct {
	AppID string `yaml:"app_id"`

	// Cluster selects the release cohort cluster. Defaults to "default".
	Cluster string `yaml:"cluster"`

	Namespaces []string `yaml:"namespaces"`
}

// HostType discriminates the host identity variant.
type HostType string

const (
	HostTypeHostName HostType = "HostName"
	HostTypeHostCidr HostType = "HostCidr"
	HostTypeCustom   HostType = "Custom"
)

// HostConfig is the YAML form of the host identity, a tagged variant:
//
//	host:
//	  type: HostCidr
//	  cidr: 10.2.0.0/16
type HostConfig struct {
	Type   HostType `yaml:"type"`
	CIDR   string   `yaml:"cidr"`
	Custom string   `yaml:"custom"`
}

// UnmarshalYAML enforces that exactly the fields of the declared variant are set.
func (h *HostConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawHost struct {
		Type   HostType `yaml:"type"`
		CIDR   string   `yaml:"cidr"`
		Custom string   `yaml:"custom"`
	}

	var raw rawHost
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch raw.Type {
	case HostTypeHostName:
	case HostTypeHostCidr:
		if raw.CIDR == "" {
			return fmt.Errorf("host type %s requires a cidr field", raw.Type)
		}
	case HostTypeCustom:
		if raw.Custom == "" {
			return fmt.Errorf("host type %s requires a custom field", raw.Type)
		}
	default:
		return fmt.Errorf("unknown host type %q (expected HostName, HostCidr or Custom)", raw.Type)
	}

	h.Type = raw.Type
	h.CIDR = raw.CIDR
	h.Custom = raw.Custom

	return nil
}

// validLogLevels are the levels the startup config accepts.
var validLogLevels = map[string]struct{}{
	string(logger.OffLevel):   {},
	string(logger.ErrorLevel): {},
	string(logger.WarnLevel):  {},
	string(logger.InfoLevel):  {},
	string(logger.DebugLevel): {},
	string(logger.TraceLevel): {},
}

// applyDefaults fills in the defaulted fields of the config.
func (c *StartupConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = string(logger.InfoLevel)
	}

	for i := range c.Apps {
		if c.Apps[i].Cluster == "" {
			c.Apps[i].Cluster = constants.DefaultCluster
		}
	}
}

// Validate checks the config for startup-fatal problems.
func (c *StartupConfig) Validate() error {
	if _, ok := validLogLevels[strings.ToUpper(c.LogLevel)]; !ok {
		return fmt.Errorf("invalid log_level %q (expected OFF, ERROR, WARN, INFO, DEBUG or TRACE)", c.LogLevel)
	}

	if c.WorkerThreads < 0 {
		return fmt.Errorf("worker_threads must not be negative, got %d", c.WorkerThreads)
	}

	if c.Dir == "" {
		return fmt.Errorf("dir is required")
	}

	if c.ConfigServiceURL == "" {
		return fmt.Errorf("config_service_url is required")
	}

	parsed, err := url.Parse(c.ConfigServiceURL)
	if err != nil {
		return fmt.Errorf("config_service_url is not a valid URL: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("config_service_url %q must be an absolute URL", c.ConfigServiceURL)
	}

	for _, app := range c.Apps {
		if app.AppID == "" {
			return fmt.Errorf("apps entries require a non-empty app_id")
		}

		if len(app.Namespaces) == 0 {
			return fmt.Errorf("app %s declares no namespaces", app.AppID)
		}

		for _, ns := range app.Namespaces {
			if ns == "" {
				return fmt.Errorf("app %s declares an empty namespace name", app.AppID)
			}
		}
	}

	return nil
}

// Clone returns a deep copy of the config.
func (c StartupConfig) Clone() StartupConfig {
	var clone StartupConfig
	deepcopy.Copy(&clone, &c)
	return clone
}

// ParseStartupConfig parses and validates raw YAML into a StartupConfig.
func ParseStartupConfig(data []byte) (StartupConfig, error) {
	var cfg StartupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StartupConfig{}, fmt.Errorf("failed to parse startup config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return StartupConfig{}, fmt.Errorf("invalid startup config: %w", err)
	}

	return cfg, nil
}
