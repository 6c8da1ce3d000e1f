package events

import (
	"time"

	"github.com/localcompute/g4l/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompletionFinished is emitted after a completion call ends.
	EventTypeCompletionFinished = "g4l.completion.finished"

	// DefaultTopic is the topic completion events are published to.
	DefaultTopic = "g4l.completions"
)

// CompletionEvent is a transport-neutral event payload for a finished
// completion.
type CompletionEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	CompletionID  string           `json:"completion_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	Model         string           `json:"model"`
	Backend       string           `json:"backend"`
	FinishReason  llm.FinishReason `json:"finish_reason"`
	Streaming     bool             `json:"streaming"`
	Augmented     bool             `json:"augmented"`
	Tokens        int              `json:"tokens"`
	Timing        CompletionTiming `json:"timing"`
}

// CompletionTiming captures request lifecycle durations for the event.
type CompletionTiming struct {
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	RetrievalMs  int64     `json:"retrieval_ms"`
	FirstTokenMs int64     `json:"first_token_ms"`
	DurationMs   int64     `json:"duration_ms"`
}
