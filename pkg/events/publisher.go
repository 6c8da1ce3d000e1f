// Package events publishes completion lifecycle events to an event stream.
package events

import "context"

// Publisher publishes completion events to an event stream backend.
type Publisher interface {
	PublishCompletion(ctx context.Context, event *CompletionEvent) error
	Close() error
}
