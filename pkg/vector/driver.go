// Package vector provides interfaces and implementations for storing
// embedded document chunks and running similarity queries over them.
package vector

import "context"

// Document is one embedded chunk of an indexed file.
type Document struct {
	// ID is a unique, content-derived identifier for the chunk.
	ID string

	// Text is the chunk content handed to the prompt assembler.
	Text string

	// Source is the file name the chunk was read from.
	Source string

	// PageLabel identifies the page within Source.
	PageLabel string

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of embedded documents.
type Driver interface {
	// Add stores documents with their embeddings. A document whose ID already
	// exists is replaced.
	Add(ctx context.Context, docs []Document) error

	// Query returns the topK documents most similar to embedding, best first.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// DeleteSource removes every document read from source.
	DeleteSource(ctx context.Context, source string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the driver.
	Close() error
}
