package index

import "strings"

const (
	// DefaultChunkSize is the number of words per chunk.
	DefaultChunkSize = 512

	// DefaultChunkOverlap is the number of words shared by neighbouring chunks.
	DefaultChunkOverlap = 64
)

// Chunk splits text into windows of at most size whitespace-separated words,
// advancing by size-overlap words so consecutive chunks share overlap words.
// Blank text yields no chunks. Words are re-joined with single spaces.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap >= size {
		overlap = size - 1
	}
	if overlap < 0 {
		overlap = 0
	}

	if len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	var chunks []string
	for start := 0; start < len(words); start += size - overlap {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
