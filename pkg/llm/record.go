package llm

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// FinishReason explains why a completion ended.
type FinishReason string

const (
	// FinishStop is used when the source ran out or a stop word matched.
	FinishStop FinishReason = "stop"

	// FinishLength is used when the max token budget was reached.
	FinishLength FinishReason = "length"
)

// Record is implemented by both units a completion call can produce.
type Record interface {
	RecordID() string
	Finish() *FinishReason
}

// ChunkRecord is one streamed unit of a completion. Every chunk of a call
// carries the same ID. The terminal chunk has a nil Delta and a non-nil
// FinishReason; every other chunk has the reverse.
type ChunkRecord struct {
	ID           string
	Model        string
	Created      int64
	Delta        *string
	FinishReason *FinishReason
}

// RecordID implements Record.
func (c ChunkRecord) RecordID() string { return c.ID }

// Finish implements Record.
func (c ChunkRecord) Finish() *FinishReason { return c.FinishReason }

// Terminal reports whether this is the closing chunk of a stream.
func (c ChunkRecord) Terminal() bool { return c.FinishReason != nil }

// MarshalJSON renders the chunk as an OpenAI "chat.completion.chunk" object.
func (c ChunkRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCompletion{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Created: c.Created,
		Model:   c.Model,
		Choices: []wireChoice{{Delta: &wireDelta{Content: c.Delta}, FinishReason: c.FinishReason}},
	})
}

// CompletionRecord is the single unit of a non-streaming completion.
type CompletionRecord struct {
	ID           string
	Model        string
	Created      int64
	Content      string
	FinishReason FinishReason
}

// RecordID implements Record.
func (c CompletionRecord) RecordID() string { return c.ID }

// Finish implements Record.
func (c CompletionRecord) Finish() *FinishReason { return &c.FinishReason }

// MarshalJSON renders the record as an OpenAI "chat.completion" object.
func (c CompletionRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCompletion{
		ID:      c.ID,
		Object:  "chat.completion",
		Created: c.Created,
		Model:   c.Model,
		Choices: []wireChoice{{
			Message:      &ChatMessage{Role: RoleAssistant, Content: c.Content},
			FinishReason: &c.FinishReason,
		}},
	})
}

type wireCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model,omitempty"`
	Choices []wireChoice `json:"choices"`
}

type wireChoice struct {
	Index        int           `json:"index"`
	Delta        *wireDelta    `json:"delta,omitempty"`
	Message      *ChatMessage  `json:"message,omitempty"`
	FinishReason *FinishReason `json:"finish_reason"`
}

type wireDelta struct {
	Content *string `json:"content,omitempty"`
}

// NewCompletionID returns a fresh opaque completion identifier.
func NewCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
