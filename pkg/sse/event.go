// Package sse reads and writes Server-Sent Events. The reader parses the
// event stream of an OpenAI-compatible completion server; the writer emits
// completion chunks to API clients in the same framing.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneData is the sentinel payload that closes an OpenAI-style stream.
const DoneData = "[DONE]"

// Event represents a single parsed SSE event, delimited by a blank line.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the last "id:" field, if present.
	ID string
}

// IsDone reports whether the event is the end-of-stream sentinel.
func (e *Event) IsDone() bool {
	return e != nil && e.Data == DoneData
}
