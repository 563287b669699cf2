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

// Package sink writes materialized namespace files under the output base
// directory. Every write is a full overwrite; there is no diffing against
// previous content.
package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/logger"
	"github.com/confsync/confsyncd/pkg/service/filesystem"
)

// Sink materializes files at <baseDir>/<appID>/<filename>.
type Sink struct {
	baseDir   string
	fsService filesystem.Service
	logger    *zap.SugaredLogger
}

// New creates a Sink rooted at baseDir. The path is used as-is.
func New(baseDir string, fsService filesystem.Service) *Sink {
	return &Sink{
		baseDir:   baseDir,
		fsService: fsService,
		logger:    logger.For(logger.ComponentSink),
	}
}

// BaseDir returns the output base directory.
func (s *Sink) BaseDir() string {
	return s.baseDir
}

// EnsureBaseDirectory creates the output base directory tree. Failure here is
// fatal to the daemon; per-app directory failures later are not.
func (s *Sink) EnsureBaseDirectory(ctx context.Context) error {
	if err := s.fsService.EnsureDirectory(ctx, s.baseDir); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.baseDir, err)
	}

	return nil
}

// Write creates the app subdirectory if needed and overwrites
// <baseDir>/<appID>/<filename> with content. A failed write may leave a
// truncated file for that one namespace; the next successful snapshot for
// the same namespace replaces it.
func (s *Sink) Write(ctx context.Context, appID, filename string, content []byte) error {
	dir := filepath.Join(s.baseDir, appID)
	if err := s.fsService.EnsureDirectory(ctx, dir); err != nil {
		return fmt.Errorf("failed to create app directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, filename)
	if err := s.fsService.WriteFile(ctx, path, content, constants.MaterializedFileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Debugf("Materialized %s (%d bytes)", path, len(content))

	return nil
}
