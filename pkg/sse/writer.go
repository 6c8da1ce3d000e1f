package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// Writer emits "data:" events and flushes after each one so clients see
// chunks as they are produced.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w *bufio.Writer) *Writer {
	return &Writer{w: w}
}

// Data writes payload as a single event. payload must not contain newlines.
func (w *Writer) Data(payload []byte) error {
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.w.Flush()
}

// JSON marshals v and writes it as a single event.
func (w *Writer) JSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return w.Data(payload)
}

// Done writes the end-of-stream sentinel.
func (w *Writer) Done() error {
	return w.Data([]byte(DoneData))
}
