// Package backend defines the boundary to a locally running inference
// server. A Backend turns a conversation and an option bag into a lazy
// stream of raw text increments.
package backend

import (
	"context"
	"io"
	"iter"

	"github.com/localcompute/g4l/pkg/llm"
)

// Backend generates tokens for a conversation.
type Backend interface {
	// Generate starts a completion. Model lookup failures are returned here,
	// wrapping llm.ErrModelNotFound, before any token is produced.
	Generate(ctx context.Context, model string, messages []llm.ChatMessage, opts Options) (*TokenStream, error)

	// Name identifies the backend in logs and events.
	Name() string
}

// NextFunc reads the next increment from a stream. It returns done once the
// server has signalled the end of generation.
type NextFunc func() (token string, done bool, err error)

// TokenStream is a lazily pulled sequence of text increments.
type TokenStream struct {
	next   NextFunc
	closer io.Closer
	err    error
	closed bool
}

// NewTokenStream wraps next. closer, if non-nil, is closed when iteration
// ends for any reason.
func NewTokenStream(next NextFunc, closer io.Closer) *TokenStream {
	return &TokenStream{next: next, closer: closer}
}

// StaticStream returns a stream over fixed tokens.
func StaticStream(tokens ...string) *TokenStream {
	i := 0
	return NewTokenStream(func() (string, bool, error) {
		if i >= len(tokens) {
			return "", true, nil
		}
		i++
		return tokens[i-1], false, nil
	}, nil)
}

// Tokens yields each non-empty increment. A read error ends the sequence
// and is reported by Err. Stopping early releases the underlying stream.
func (s *TokenStream) Tokens() iter.Seq[string] {
	return func(yield func(string) bool) {
		defer s.Close()
		for !s.closed {
			tok, done, err := s.next()
			if err != nil {
				s.err = err
				return
			}
			if tok != "" && !yield(tok) {
				return
			}
			if done {
				return
			}
		}
	}
}

// Err returns the error that ended iteration, if any.
func (s *TokenStream) Err() error {
	return s.err
}

// Close releases the underlying stream. It is safe to call more than once.
func (s *TokenStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
