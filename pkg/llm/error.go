package llm

import "errors"

var (
	// ErrModelNotFound is returned when the requested model cannot be
	// located by the backend.
	ErrModelNotFound = errors.New("model not found")

	// ErrRetrieval is returned when passages could not be fetched for a
	// query.
	ErrRetrieval = errors.New("an error occurred while processing the query")

	// ErrBackend is returned when the inference backend fails.
	ErrBackend = errors.New("backend error")
)
