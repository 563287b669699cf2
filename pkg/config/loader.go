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
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/env"
	"github.com/confsync/confsyncd/pkg/service/filesystem"
)

// FileConfigLoader reads the startup config from a YAML file.
type FileConfigLoader struct {
	configPath string
	fsService  filesystem.Service
}

// NewFileConfigLoader creates a loader for the path given by the CONFIG_PATH
// environment variable, falling back to the default path.
//
// Loading happens before the global logger is configured (the config carries
// the log level), so the loader logs only through the uninitialized global,
// which discards output.
func NewFileConfigLoader() *FileConfigLoader {
	configPath, _ := env.GetAsString("CONFIG_PATH", false, constants.DefaultConfigPath)

	return &FileConfigLoader{
		configPath: configPath,
		fsService:  filesystem.NewDefaultService(),
	}
}

// WithConfigPath overrides the config file path.
func (l *FileConfigLoader) WithConfigPath(path string) *FileConfigLoader {
	l.configPath = path
	return l
}

// WithFileSystemService allows setting a custom filesystem service,
// useful for testing.
func (l *FileConfigLoader) WithFileSystemService(fsService filesystem.Service) *FileConfigLoader {
	l.fsService = fsService
	return l
}

// Load reads, parses and validates the startup config. Any error here is
// fatal to the daemon.
func (l *FileConfigLoader) Load(ctx context.Context) (StartupConfig, error) {
	if ctx.Err() != nil {
		return StartupConfig{}, ctx.Err()
	}

	data, err := l.fsService.ReadFile(ctx, l.configPath)
	if err != nil {
		return StartupConfig{}, fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}

	cfg, err := ParseStartupConfig(data)
	if err != nil {
		return StartupConfig{}, fmt.Errorf("config file %s: %w", l.configPath, err)
	}

	zap.S().Debugf("Loaded startup config from %s (%d apps)", l.configPath, len(cfg.Apps))

	return cfg, nil
}
