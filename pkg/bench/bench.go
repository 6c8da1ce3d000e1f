// Package bench measures streaming completion throughput.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/llm"
)

// Result holds per-iteration averages.
type Result struct {
	Model      string
	Iterations int

	// LoadingTime is the average time from request start to first chunk.
	LoadingTime time.Duration

	// Tokens is the average number of content chunks.
	Tokens float64

	// Time is the average time from first chunk to the end of the stream.
	Time time.Duration
}

// Speed returns tokens per second over the average generation time.
func (r Result) Speed() float64 {
	if r.Time <= 0 {
		return 0
	}
	return r.Tokens / r.Time.Seconds()
}

// Write prints r in the key/value benchmark layout.
func (r Result) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"Model                = %s\n"+
			"Number of iterations = %d\n"+
			"Average loading time = %.2fs\n"+
			"Average total tokens = %.2f\n"+
			"Average total time   = %.2fs\n"+
			"Average speed        = %.2f t/s\n",
		r.Model, r.Iterations, r.LoadingTime.Seconds(), r.Tokens, r.Time.Seconds(), r.Speed(),
	)
	return err
}

// Run streams a single-message completion iterations times and averages the
// measurements.
func Run(ctx context.Context, e *engine.Engine, model, message string, iterations int) (Result, error) {
	if iterations < 1 {
		return Result{}, errors.New("iterations must be at least 1")
	}

	var (
		totalTokens  int
		totalTime    time.Duration
		totalLoading time.Duration
	)

	for i := range iterations {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		req := &llm.ChatRequest{
			Model:    model,
			Messages: []llm.ChatMessage{llm.NewTextMessage(llm.RoleUser, message)},
			Stream:   true,
		}

		streamStart := time.Now()
		res, err := e.Stream(ctx, req)
		if err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", i+1, err)
		}

		var (
			first  time.Time
			tokens int
		)
		for chunk := range res.Chunks() {
			if first.IsZero() {
				first = time.Now()
			}
			if chunk.Delta != nil {
				tokens++
			}
		}
		if err := res.Err(); err != nil {
			return Result{}, fmt.Errorf("iteration %d: %w", i+1, err)
		}

		totalTokens += tokens
		totalTime += time.Since(first)
		totalLoading += first.Sub(streamStart)
	}

	n := time.Duration(iterations)
	return Result{
		Model:       model,
		Iterations:  iterations,
		LoadingTime: totalLoading / n,
		Tokens:      float64(totalTokens) / float64(iterations),
		Time:        totalTime / n,
	}, nil
}
