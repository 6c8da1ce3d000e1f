package mcp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/api/mcp"
	"github.com/localcompute/g4l/pkg/engine"
	g4llogger "github.com/localcompute/g4l/pkg/logger"
	testutils "github.com/localcompute/g4l/pkg/utils/test"
)

var _ = Describe("MCP Server", func() {
	var eng *engine.Engine

	BeforeEach(func() {
		eng = engine.New(testutils.NewMockBackend("ok"))
	})

	Describe("NewServer", func() {
		It("returns an error when engine is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: g4llogger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("engine is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Engine: eng})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server without a retriever", func() {
			server, err := mcp.NewServer(mcp.Config{Engine: eng, Logger: g4llogger.Nop()})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})
})
