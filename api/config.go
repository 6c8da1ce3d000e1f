// Package api provides the HTTP API server: OpenAI-style chat completions
// over the local engine, plus passage retrieval and an MCP endpoint.
package api

import (
	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/retrieval"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Engine runs completions. Required.
	Engine *engine.Engine

	// Retriever backs /v1/retrieve and /v1/prompt. Nil disables both.
	Retriever *retrieval.Retriever

	// DefaultModel is used when a request omits "model".
	DefaultModel string

	// DisableMCP leaves /mcp unmounted.
	DisableMCP bool
}
