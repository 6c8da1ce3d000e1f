// Package llamacpp implements backend.Backend over llama-server's
// OpenAI-compatible streaming endpoint, with model files resolved locally.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/sse"
)

const (
	// DefaultBaseURL is llama-server's default listen address.
	DefaultBaseURL = "http://localhost:8080"

	Name = "llamacpp"
)

// Config holds configuration for the llama.cpp backend.
type Config struct {
	BaseURL string

	// ModelsDir is where model files are looked up.
	ModelsDir string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Backend streams completions from a llama-server process.
type Backend struct {
	baseURL    string
	resolver   backend.ModelResolver
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a llama.cpp backend.
func New(cfg Config) *Backend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		resolver:   backend.ModelResolver{Dir: cfg.ModelsDir},
		httpClient: client,
		logger:     logger,
	}
}

func (b *Backend) Name() string { return Name }

// Generate resolves the model file, then opens an SSE completion stream. A
// missing model file fails before any request is made.
func (b *Backend) Generate(ctx context.Context, model string, messages []llm.ChatMessage, opts backend.Options) (*backend.TokenStream, error) {
	path, err := b.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("resolved model", zap.String("model", model), zap.String("path", path))

	body, err := json.Marshal(buildRequest(path, messages, opts))
	if err != nil {
		return nil, fmt.Errorf("marshaling completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: llama.cpp request failed: %v", llm.ErrBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, fmt.Errorf("%w: llama.cpp returned status %d: %s", llm.ErrBackend, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	reader := sse.NewReader(resp.Body)
	next := func() (string, bool, error) {
		ev, err := reader.Next()
		if err != nil {
			return "", false, fmt.Errorf("%w: reading llama.cpp stream: %v", llm.ErrBackend, err)
		}
		if ev == nil || ev.IsDone() {
			return "", true, nil
		}
		if ev.Data == "" {
			return "", false, nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return "", false, fmt.Errorf("%w: decoding llama.cpp chunk: %v", llm.ErrBackend, err)
		}
		if chunk.Error != nil {
			return "", false, fmt.Errorf("%w: %s", llm.ErrBackend, chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			return "", false, nil
		}
		return chunk.Choices[0].Delta.Content, false, nil
	}

	return backend.NewTokenStream(next, resp.Body), nil
}

func buildRequest(modelPath string, messages []llm.ChatMessage, opts backend.Options) completionRequest {
	msgs := make([]message, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, message{Role: string(m.Role), Content: m.Content})
	}

	return completionRequest{
		Model:       modelPath,
		Messages:    msgs,
		Stream:      true,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stop:        opts.Stop,
		NGPULayers:  opts.GPULayers,
		Threads:     opts.Threads,
		UseMMap:     opts.UseMMap,
		UseMLock:    opts.UseMLock,
		OffloadKQV:  opts.OffloadKQV,
		NCtx:        opts.ContextWindow,
	}
}
