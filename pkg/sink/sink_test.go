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

package sink_test

import (
	"context"
	"errors"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/confsync/confsyncd/pkg/service/filesystem"
	"github.com/confsync/confsyncd/pkg/sink"
)

var _ = Describe("Sink", func() {
	var (
		ctx    context.Context
		mockFS *filesystem.MockFileSystem
		s      *sink.Sink
	)

	BeforeEach(func() {
		ctx = context.Background()
		mockFS = filesystem.NewMockFileSystem()
		s = sink.New("/data/configs", mockFS)
	})

	It("exposes its base directory", func() {
		Expect(s.BaseDir()).To(Equal("/data/configs"))
	})

	Describe("EnsureBaseDirectory", func() {
		It("creates the base directory", func() {
			Expect(s.EnsureBaseDirectory(ctx)).To(Succeed())
			Expect(mockFS.Directories()).To(ContainElement("/data/configs"))
		})

		It("propagates creation failures", func() {
			mockFS.EnsureDirectoryFunc = func(_ context.Context, _ string) error {
				return errors.New("read-only filesystem")
			}

			err := s.EnsureBaseDirectory(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("/data/configs"))
		})
	})

	Describe("Write", func() {
		It("writes under the app subdirectory", func() {
			content := []byte("server.port = 8080\n")
			Expect(s.Write(ctx, "order-service", "application.properties", content)).To(Succeed())

			Expect(mockFS.Directories()).To(ContainElement("/data/configs/order-service"))

			written, ok := mockFS.FileContent("/data/configs/order-service/application.properties")
			Expect(ok).To(BeTrue())
			Expect(written).To(Equal(content))
		})

		It("overwrites a previous snapshot in full", func() {
			path := "/data/configs/order-service/application.properties"

			Expect(s.Write(ctx, "order-service", "application.properties", []byte("server.port = 8080\n"))).To(Succeed())
			Expect(s.Write(ctx, "order-service", "application.properties", []byte("server.port = 9090\n"))).To(Succeed())

			written, ok := mockFS.FileContent(path)
			Expect(ok).To(BeTrue())
			Expect(string(written)).To(Equal("server.port = 9090\n"))
		})

		It("keeps apps in separate subdirectories", func() {
			Expect(s.Write(ctx, "order-service", "application.properties", []byte("a"))).To(Succeed())
			Expect(s.Write(ctx, "billing", "application.properties", []byte("b"))).To(Succeed())

			orders, _ := mockFS.FileContent("/data/configs/order-service/application.properties")
			billing, _ := mockFS.FileContent("/data/configs/billing/application.properties")
			Expect(string(orders)).To(Equal("a"))
			Expect(string(billing)).To(Equal("b"))
		})

		It("fails when the app directory cannot be created", func() {
			mockFS.EnsureDirectoryFunc = func(_ context.Context, _ string) error {
				return errors.New("disk full")
			}

			err := s.Write(ctx, "order-service", "application.properties", []byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("app directory"))
		})

		It("fails when the file cannot be written", func() {
			mockFS.WriteFileFunc = func(_ context.Context, _ string, _ []byte, _ os.FileMode) error {
				return errors.New("disk full")
			}

			err := s.Write(ctx, "order-service", "application.properties", []byte("x"))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("application.properties"))
		})
	})
})
