package llm

import (
	"encoding/json"
	"fmt"
)

// ResponseFormatJSONObject asks for the completion content to be reduced to
// the first fenced JSON block, when one is present.
const ResponseFormatJSONObject = "json_object"

// ResponseFormat describes the requested shape of a completion.
type ResponseFormat struct {
	Type string `json:"type"`
}

// IsJSON reports whether fenced JSON extraction was requested.
func (f *ResponseFormat) IsJSON() bool {
	return f != nil && f.Type == ResponseFormatJSONObject
}

// ChatRequest is a chat completion request as accepted by the engine and
// the HTTP API. Its JSON shape follows the OpenAI chat completions body.
type ChatRequest struct {
	// Model key, resolved by the backend (e.g. "llama-3-8b-instruct")
	Model string `json:"model"`

	// Conversation messages
	Messages []ChatMessage `json:"messages"`

	// Whether to stream the response as chunk records
	Stream bool `json:"stream,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	// Generation parameters. Nil means "not set".
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stop        StopWords `json:"stop,omitempty"`
}

// StopWords is an ordered list of stop sequences. On the wire it accepts
// either a single string or a list of strings.
type StopWords []string

// UnmarshalJSON accepts `"stop": "x"` as well as `"stop": ["x", "y"]`.
func (s *StopWords) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopWords{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or a list of strings: %w", err)
	}
	*s = many
	return nil
}

// Validate checks the request for fields every backend relies on.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, m := range r.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: unknown role %q", i, m.Role)
		}
	}
	if r.MaxTokens != nil && *r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	return nil
}

// ErrorResponse is the JSON body returned by the API on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
