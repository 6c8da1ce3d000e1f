// Package retrieval fetches passages from an indexed document set and folds
// them into a context-augmented prompt.
package retrieval

import (
	"strconv"
	"strings"
)

// Passage is one ranked chunk returned for a query.
type Passage struct {
	Text       string  `json:"text"`
	Score      float32 `json:"similarity_score"`
	SourceFile string  `json:"source_file"`
	PageLabel  string  `json:"page_label"`
}

// FormatScore renders a similarity score the way it appears in prompts.
func FormatScore(score float32) string {
	return strconv.FormatFloat(float64(score), 'f', -1, 32)
}

func (p Passage) block() string {
	return strings.Join([]string{
		"content: \n" + p.Text,
		"----\npage_label: " + p.PageLabel,
		"file name: " + p.SourceFile,
		"similarity score: " + FormatScore(p.Score),
	}, "\n") + "\n---"
}

// Assemble builds the context-augmented prompt for query. Each passage block
// ends with its own "\n---" rule and blocks are concatenated in the order
// given. With no passages the context region is empty.
func Assemble(query string, passages []Passage) string {
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = p.block()
	}

	var b strings.Builder
	b.WriteString("Context information is below.\n")
	b.WriteString("---------------------\n")
	b.WriteString(strings.Join(blocks, ""))
	b.WriteString("\n")
	b.WriteString("---------------------\n")
	b.WriteString("Given the context information and not prior knowledge, answer the query.\n")
	b.WriteString("Query: " + query + "\n")
	b.WriteString("Answer: ")
	return b.String()
}
