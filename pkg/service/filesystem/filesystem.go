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

package filesystem

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/confsync/confsyncd/pkg/constants"
	"github.com/confsync/confsyncd/pkg/metrics"
)

// DefaultService is the default implementation of the filesystem Service.
type DefaultService struct{}

// NewDefaultService creates a new DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{}
}

// recordOp records filesystem operation metrics
func (s *DefaultService) recordOp(op string, path string, start time.Time, err error) {
	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}

	metrics.RecordFilesystemOp(op, path, status, duration)
}

// checkContext checks if the context is done before proceeding with an operation.
func (s *DefaultService) checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// EnsureDirectory creates a directory and all missing ancestors. Creating an
// already-existing directory is not an error.
func (s *DefaultService) EnsureDirectory(ctx context.Context, path string) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- os.MkdirAll(path, constants.OutputDirMode)
	}()

	// Wait for either completion or context cancellation
	select {
	case err := <-errCh:
		if err != nil {
			s.recordOp("EnsureDirectory", path, start, err)
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
		s.recordOp("EnsureDirectory", path, start, nil)
		return nil
	case <-ctx.Done():
		err := ctx.Err()
		s.recordOp("EnsureDirectory", path, start, err)
		return err
	}
}

// ReadFile reads a file's contents respecting the context.
func (s *DefaultService) ReadFile(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to check context: %w", err)
	}

	type result struct {
		err  error
		data []byte
	}

	resCh := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(path)
		resCh <- result{err: err, data: data}
	}()

	select {
	case res := <-resCh:
		s.recordOp("ReadFile", path, start, res.err)
		if res.err != nil {
			return nil, res.err
		}
		return res.data, nil
	case <-ctx.Done():
		err := ctx.Err()
		s.recordOp("ReadFile", path, start, err)
		return nil, err
	}
}

// WriteFile creates or truncates the file at path, writes data in full and
// syncs it to stable storage before returning. A failed write may leave a
// truncated file behind; the next successful write replaces it.
func (s *DefaultService) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	start := time.Now()
	if err := s.checkContext(ctx); err != nil {
		return fmt.Errorf("failed to check context: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- writeAndSync(path, data, perm)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.recordOp("WriteFile", path, start, err)
			return fmt.Errorf("failed to write file %s: %w", path, err)
		}
		s.recordOp("WriteFile", path, start, nil)
		return nil
	case <-ctx.Done():
		err := ctx.Err()
		s.recordOp("WriteFile", path, start, err)
		return err
	}
}

// writeAndSync is os.WriteFile plus an fsync before close.
func writeAndSync(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	return err
}
