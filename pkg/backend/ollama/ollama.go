// Package ollama implements backend.Backend over Ollama's streaming chat API.
package ollama

import (
	"bufio"
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
)

const (
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	Name = "ollama"
)

// Config holds configuration for the Ollama backend.
type Config struct {
	// BaseURL defaults to DefaultBaseURL if empty.
	BaseURL string

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Backend streams completions from an Ollama server.
type Backend struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates an Ollama backend.
func New(cfg Config) *Backend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		// No overall timeout: generation streams for as long as the model runs.
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		logger:     logger,
	}
}

func (b *Backend) Name() string { return Name }

// Generate posts the conversation to /api/chat and returns a stream over the
// message deltas of the NDJSON response.
func (b *Backend) Generate(ctx context.Context, model string, messages []llm.ChatMessage, opts backend.Options) (*backend.TokenStream, error) {
	body, err := json.Marshal(b.buildRequest(model, messages, opts))
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request failed: %v", llm.ErrBackend, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg := readError(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %s", llm.ErrModelNotFound, model, msg)
		}
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrBackend, resp.StatusCode, msg)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	next := func() (string, bool, error) {
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			var chunk chatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				return "", false, fmt.Errorf("%w: decoding ollama chunk: %v", llm.ErrBackend, err)
			}
			if chunk.Error != "" {
				return "", false, fmt.Errorf("%w: %s", llm.ErrBackend, chunk.Error)
			}
			return chunk.Message.Content, chunk.Done, nil
		}
		if err := scanner.Err(); err != nil {
			return "", false, fmt.Errorf("%w: reading ollama stream: %v", llm.ErrBackend, err)
		}
		return "", true, nil
	}

	return backend.NewTokenStream(next, resp.Body), nil
}

func (b *Backend) buildRequest(model string, messages []llm.ChatMessage, opts backend.Options) chatRequest {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	if opts.OffloadKQV != nil {
		b.logger.Debug("ollama has no offload_kqv option, ignoring", zap.Bool("offload_kqv", *opts.OffloadKQV))
	}

	return chatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
		Options: &chatOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			NumCtx:      opts.ContextWindow,
			NumGPU:      opts.GPULayers,
			NumThread:   opts.Threads,
			UseMMap:     opts.UseMMap,
			UseMLock:    opts.UseMLock,
			Stop:        opts.Stop,
		},
	}
}

func readError(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil {
		return err.Error()
	}
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}

