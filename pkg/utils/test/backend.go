package testutils

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/llm"
)

// MockBackend replays fixed tokens and records what it was asked to generate.
type MockBackend struct {
	mu sync.Mutex

	Tokens []string

	// Models limits the known models. Empty means every model is known.
	Models []string

	// StreamErr is returned by the stream after every token has been yielded.
	StreamErr error

	pulled       int
	lastMessages []llm.ChatMessage
	lastOpts     backend.Options
	calls        int
}

func NewMockBackend(tokens ...string) *MockBackend {
	return &MockBackend{Tokens: tokens}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Generate(_ context.Context, model string, messages []llm.ChatMessage, opts backend.Options) (*backend.TokenStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Models) > 0 && !slices.Contains(m.Models, model) {
		return nil, fmt.Errorf("%w: %s", llm.ErrModelNotFound, model)
	}

	m.calls++
	m.lastMessages = llm.CloneMessages(messages)
	m.lastOpts = opts
	m.pulled = 0

	i := 0
	return backend.NewTokenStream(func() (string, bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if i >= len(m.Tokens) {
			if m.StreamErr != nil {
				return "", false, m.StreamErr
			}
			return "", true, nil
		}
		i++
		m.pulled++
		return m.Tokens[i-1], false, nil
	}, nil), nil
}

// Calls returns how many streams were started.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Pulled returns how many tokens the last stream handed out.
func (m *MockBackend) Pulled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pulled
}

// LastMessages returns the conversation of the last call.
func (m *MockBackend) LastMessages() []llm.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return llm.CloneMessages(m.lastMessages)
}

// LastOptions returns the options of the last call.
func (m *MockBackend) LastOptions() backend.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}

