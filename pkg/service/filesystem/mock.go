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
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MockFileSystem is a mock implementation of the filesystem.Service interface.
// Unless an operation func is overridden, it behaves like an empty in-memory
// filesystem: directories are tracked as a set, files as a path→content map.
type MockFileSystem struct {
	ReadFileFunc        func(ctx context.Context, path string) ([]byte, error)
	WriteFileFunc       func(ctx context.Context, path string, data []byte, perm os.FileMode) error
	EnsureDirectoryFunc func(ctx context.Context, path string) error

	mutex sync.Mutex
	dirs  map[string]bool
	files map[string][]byte
}

// NewMockFileSystem creates a new MockFileSystem instance.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		dirs:  make(map[string]bool),
		files: make(map[string][]byte),
	}
}

// Directories returns the sorted set of directories created so far.
func (m *MockFileSystem) Directories() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make([]string, 0, len(m.dirs))
	for d := range m.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// FileContent returns the content last written to path, if any.
func (m *MockFileSystem) FileContent(path string) ([]byte, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	data, ok := m.files[path]
	return data, ok
}

// EnsureDirectory creates a directory if it doesn't exist.
func (m *MockFileSystem) EnsureDirectory(ctx context.Context, path string) error {
	if m.EnsureDirectoryFunc != nil {
		return m.EnsureDirectoryFunc(ctx, path)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	for p := path; p != "/" && p != "."; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// ReadFile reads a file's contents.
func (m *MockFileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(ctx, path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

// WriteFile writes data to the in-memory filesystem.
func (m *MockFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(ctx, path, data, perm)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.files[path] = append([]byte(nil), data...)
	return nil
}
