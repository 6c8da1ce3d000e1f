// Package engine runs chat completions end to end: optional retrieval
// augmentation, the backend call, and response normalization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/events"
	"github.com/localcompute/g4l/pkg/events/nop"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/normalize"
)

// Augmenter rewrites a user query into a context-augmented prompt.
// *retrieval.Retriever implements it.
type Augmenter interface {
	PromptFor(ctx context.Context, query string) (string, error)
}

// Engine is safe for concurrent use.
type Engine struct {
	backend backend.Backend
	cfg     config
	logger  *zap.Logger
}

// New creates an Engine over b.
func New(b backend.Backend, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.publisher == nil {
		cfg.publisher = nop.NewPublisher()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	return &Engine{backend: b, cfg: cfg, logger: cfg.logger}
}

// Augmented reports whether a retriever is attached.
func (e *Engine) Augmented() bool {
	return e.cfg.augmenter != nil
}

// call is the per-request state shared by Create and Stream.
type call struct {
	req       *llm.ChatRequest
	stream    *backend.TokenStream
	augmented bool
	started   time.Time
	retrieval time.Duration
	firstTok  time.Time
	tokens    int
}

// start prepares the conversation and opens the backend stream. Backend
// errors such as llm.ErrModelNotFound are returned before any record exists.
func (e *Engine) start(ctx context.Context, req *llm.ChatRequest) (*call, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c := &call{req: req, started: e.cfg.clock()}

	messages, augmented, err := e.augment(ctx, req.Messages)
	if err != nil {
		return nil, err
	}
	c.augmented = augmented
	c.retrieval = e.cfg.clock().Sub(c.started)

	opts := e.backendOptions(req)
	e.logger.Debug("starting completion",
		append([]zap.Field{
			zap.String("backend", e.backend.Name()),
			zap.String("model", req.Model),
			zap.Bool("stream", req.Stream),
			zap.Bool("augmented", augmented),
		}, opts.Fields()...)...,
	)

	stream, err := e.backend.Generate(ctx, req.Model, messages, opts)
	if err != nil {
		return nil, err
	}
	c.stream = stream
	return c, nil
}

// augment returns a copy of messages with the final user message replaced
// by the retrieval prompt. Earlier messages are never altered.
func (e *Engine) augment(ctx context.Context, messages []llm.ChatMessage) ([]llm.ChatMessage, bool, error) {
	out := llm.CloneMessages(messages)
	if e.cfg.augmenter == nil {
		return out, false, nil
	}

	idx := llm.LastUserIndex(out)
	if idx < 0 {
		return out, false, nil
	}

	prompt, err := e.cfg.augmenter.PromptFor(ctx, out[idx].Content)
	if err != nil {
		if e.cfg.requireRetrieval || !errors.Is(err, llm.ErrRetrieval) {
			return nil, false, err
		}
		e.logger.Warn("no augmentation available, continuing without context", zap.Error(err))
		return out, false, nil
	}

	out[idx].Content = prompt
	return out, true, nil
}

// backendOptions builds a fresh option bag for one call from the request
// and the engine's load settings.
func (e *Engine) backendOptions(req *llm.ChatRequest) backend.Options {
	gpu := e.cfg.gpuLayers
	mmap := e.cfg.useMMap
	mlock := e.cfg.useMLock
	kqv := e.cfg.offloadKQV
	nctx := e.cfg.contextWindow

	temperature := req.Temperature
	if temperature == nil {
		temperature = e.cfg.temperature
	}

	opts := backend.Options{
		MaxTokens:     req.MaxTokens,
		Temperature:   temperature,
		GPULayers:     &gpu,
		Threads:       e.cfg.cores,
		UseMMap:       &mmap,
		UseMLock:      &mlock,
		OffloadKQV:    &kqv,
		ContextWindow: &nctx,
	}
	if len(req.Stop) > 0 {
		opts.Stop = []string(req.Stop)
	}
	return opts.WithDefaults()
}

func (e *Engine) normalizeOptions(req *llm.ChatRequest) normalize.Options {
	return normalize.Options{
		Stream:         req.Stream,
		ResponseFormat: req.ResponseFormat,
		MaxTokens:      req.MaxTokens,
		Stop:           req.Stop,
		Model:          req.Model,
		Clock:          e.cfg.clock,
	}
}

// counted wraps the backend tokens to record the token count and the time
// of the first token.
func (e *Engine) counted(c *call) iter.Seq[string] {
	return func(yield func(string) bool) {
		for tok := range c.stream.Tokens() {
			if c.tokens == 0 {
				c.firstTok = e.cfg.clock()
			}
			c.tokens++
			if !yield(tok) {
				return
			}
		}
	}
}

// Create runs a non-streaming completion. A transport failure after the
// stream opened is returned wrapped in llm.ErrBackend.
func (e *Engine) Create(ctx context.Context, req *llm.ChatRequest) (*llm.CompletionRecord, error) {
	nonStreaming := *req
	nonStreaming.Stream = false

	c, err := e.start(ctx, &nonStreaming)
	if err != nil {
		return nil, err
	}
	defer c.stream.Close()

	rec := normalize.Complete(e.counted(c), e.normalizeOptions(c.req))
	e.publish(ctx, c, rec.ID, rec.FinishReason)

	if err := c.stream.Err(); err != nil {
		e.logger.Error("backend stream failed", zap.String("model", req.Model), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", llm.ErrBackend, err)
	}
	return &rec, nil
}

// StreamResult is a started streaming completion.
type StreamResult struct {
	engine   *Engine
	ctx      context.Context
	call     *call
	consumed atomic.Bool
}

// Stream opens a streaming completion. Backend lookup failures are returned
// here, before any chunk exists.
func (e *Engine) Stream(ctx context.Context, req *llm.ChatRequest) (*StreamResult, error) {
	streaming := *req
	streaming.Stream = true

	c, err := e.start(ctx, &streaming)
	if err != nil {
		return nil, err
	}
	return &StreamResult{engine: e, ctx: ctx, call: c}, nil
}

// Chunks yields the normalized chunk records. It can be ranged over once;
// later ranges yield nothing and publish nothing.
// A transport failure ends the token sequence early and the terminal chunk
// is still emitted; the failure is reported by Err.
func (s *StreamResult) Chunks() iter.Seq[llm.ChunkRecord] {
	e, c := s.engine, s.call
	return func(yield func(llm.ChunkRecord) bool) {
		if !s.consumed.CompareAndSwap(false, true) {
			return
		}
		defer c.stream.Close()

		var (
			id     string
			reason llm.FinishReason
		)
		defer func() {
			e.publish(s.ctx, c, id, reason)
			if err := c.stream.Err(); err != nil {
				e.logger.Error("backend stream failed", zap.String("model", c.req.Model), zap.Error(err))
			}
		}()

		for chunk := range normalize.Stream(e.counted(c), e.normalizeOptions(c.req)) {
			id = chunk.ID
			if chunk.FinishReason != nil {
				reason = *chunk.FinishReason
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// Err returns the backend failure that ended the stream, if any.
func (s *StreamResult) Err() error {
	if err := s.call.stream.Err(); err != nil {
		return fmt.Errorf("%w: %v", llm.ErrBackend, err)
	}
	return nil
}

// Close releases the backend stream without consuming it.
func (s *StreamResult) Close() error {
	return s.call.stream.Close()
}

func (e *Engine) publish(ctx context.Context, c *call, id string, reason llm.FinishReason) {
	now := e.cfg.clock()
	event := &events.CompletionEvent{
		SchemaVersion: events.SchemaVersionV1,
		EventType:     events.EventTypeCompletionFinished,
		CompletionID:  id,
		EmittedAt:     now,
		Model:         c.req.Model,
		Backend:       e.backend.Name(),
		FinishReason:  reason,
		Streaming:     c.req.Stream,
		Augmented:     c.augmented,
		Tokens:        c.tokens,
		Timing: events.CompletionTiming{
			StartedAt:   c.started,
			CompletedAt: now,
			RetrievalMs: c.retrieval.Milliseconds(),
			DurationMs:  now.Sub(c.started).Milliseconds(),
		},
	}
	if !c.firstTok.IsZero() {
		event.Timing.FirstTokenMs = c.firstTok.Sub(c.started).Milliseconds()
	}

	if err := e.cfg.publisher.PublishCompletion(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("failed to publish completion event", zap.String("completion_id", id), zap.Error(err))
	}
}
