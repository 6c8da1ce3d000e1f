package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/llm"
)

var (
	completeToolName    = "complete"
	completeDescription = "Run a non-streaming chat completion against the local model. When document retrieval is enabled the prompt is augmented with indexed context first."
)

// CompleteInput represents the input arguments for the complete tool.
type CompleteInput struct {
	Prompt    string   `json:"prompt" jsonschema:"the user message to complete"`
	System    string   `json:"system,omitempty" jsonschema:"optional system message sent before the prompt"`
	Model     string   `json:"model,omitempty" jsonschema:"model key (default: the configured model)"`
	MaxTokens int      `json:"max_tokens,omitempty" jsonschema:"maximum number of tokens to generate"`
	Stop      []string `json:"stop,omitempty" jsonschema:"stop sequences that end the completion"`
}

// CompleteOutput represents the output of the complete tool.
type CompleteOutput struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
}

// buildRequest turns tool input into a chat request.
func (s *Server) buildRequest(input CompleteInput) *llm.ChatRequest {
	req := &llm.ChatRequest{
		Model: input.Model,
		Stop:  input.Stop,
	}
	if req.Model == "" {
		req.Model = s.config.DefaultModel
	}
	if input.System != "" {
		req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleSystem, input.System))
	}
	req.Messages = append(req.Messages, llm.NewTextMessage(llm.RoleUser, input.Prompt))
	if input.MaxTokens > 0 {
		n := input.MaxTokens
		req.MaxTokens = &n
	}
	return req
}

func (s *Server) handleComplete(ctx context.Context, _ *mcp.CallToolRequest, input CompleteInput) (*mcp.CallToolResult, CompleteOutput, error) {
	logger := s.config.Logger

	if input.Prompt == "" {
		return toolError("prompt is required"), CompleteOutput{}, nil
	}

	req := s.buildRequest(input)
	logger.Debug("MCP complete request",
		zap.String("model", req.Model),
		zap.Int("stop_words", len(req.Stop)),
	)

	rec, err := s.config.Engine.Create(ctx, req)
	if err != nil {
		logger.Error("completion failed", zap.String("model", req.Model), zap.Error(err))
		return toolError(fmt.Sprintf("Completion failed: %v", err)), CompleteOutput{}, nil
	}

	output := CompleteOutput{
		ID:           rec.ID,
		Model:        req.Model,
		Content:      rec.Content,
		FinishReason: string(rec.FinishReason),
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: rec.Content},
		},
	}, output, nil
}
