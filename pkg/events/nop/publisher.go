package nop

import (
	"context"

	"github.com/localcompute/g4l/pkg/events"
)

// Publisher is a no-op events publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op events publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishCompletion validates input and otherwise does nothing.
func (p *Publisher) PublishCompletion(_ context.Context, event *events.CompletionEvent) error {
	if event == nil {
		return events.ErrNilCompletionEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
