package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/retrieval"
)

var (
	retrieveToolName    = "retrieve"
	retrieveDescription = "Retrieve the passages from the indexed document set that are most similar to the query, best first. The number of passages depends on the configured retrieval mode."
)

// RetrieveInput represents the input arguments for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the query text to find relevant passages for"`
}

// RetrieveOutput represents the output of the retrieve tool.
type RetrieveOutput struct {
	Query    string              `json:"query"`
	Mode     string              `json:"mode"`
	Passages []retrieval.Passage `json:"passages"`
	Count    int                 `json:"count"`
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input RetrieveInput) (*mcp.CallToolResult, RetrieveOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return toolError("query is required"), RetrieveOutput{}, nil
	}

	logger.Debug("MCP retrieve request", zap.String("query", input.Query))

	passages, err := s.config.Retriever.Retrieve(ctx, input.Query)
	if err != nil {
		logger.Error("failed to retrieve passages", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to retrieve passages: %v", err)), RetrieveOutput{}, nil
	}

	output := RetrieveOutput{
		Query:    input.Query,
		Mode:     string(s.config.Retriever.Mode()),
		Passages: passages,
		Count:    len(passages),
	}

	// Structured output is mirrored as JSON text for clients that only
	// read content blocks.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal retrieve output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), RetrieveOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
