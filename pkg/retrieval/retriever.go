package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/embeddings"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/vector"
)

// Retriever looks up passages for a query in an indexed document set.
// It is safe for concurrent use when its embedder and driver are.
type Retriever struct {
	embedder embeddings.Embedder
	driver   vector.Driver
	mode     Mode
	logger   *zap.Logger
	created  time.Time
}

// Config wires a Retriever.
type Config struct {
	Embedder embeddings.Embedder
	Driver   vector.Driver
	Mode     Mode
	Logger   *zap.Logger
}

// New creates a Retriever. Mode defaults to ModeDefault.
func New(c Config) (*Retriever, error) {
	if c.Embedder == nil {
		return nil, fmt.Errorf("retriever requires an embedder")
	}
	if c.Driver == nil {
		return nil, fmt.Errorf("retriever requires a vector driver")
	}

	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		embedder: c.Embedder,
		driver:   c.Driver,
		mode:     mode,
		logger:   logger,
		created:  time.Now(),
	}, nil
}

// Mode returns the aggressiveness level in use.
func (r *Retriever) Mode() Mode {
	return r.mode
}

// Retrieve returns up to Mode().TopK() passages for query, best first.
// Failures are wrapped in llm.ErrRetrieval.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Passage, error) {
	start := time.Now()

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("An error occurred while processing the query.", zap.Error(err))
		return nil, fmt.Errorf("%w: embedding query: %v", llm.ErrRetrieval, err)
	}

	results, err := r.driver.Query(ctx, emb, r.mode.TopK())
	if err != nil {
		r.logger.Error("An error occurred while processing the query.", zap.Error(err))
		return nil, fmt.Errorf("%w: querying index: %v", llm.ErrRetrieval, err)
	}

	passages := make([]Passage, len(results))
	for i, res := range results {
		passages[i] = Passage{
			Text:       res.Text,
			Score:      res.Score,
			SourceFile: res.Source,
			PageLabel:  res.PageLabel,
		}
	}

	r.logger.Debug("retrieved passages",
		zap.Int("count", len(passages)),
		zap.String("mode", string(r.mode)),
		zap.Duration("query_time", time.Since(start)),
		zap.Duration("total_time", time.Since(r.created)),
	)
	return passages, nil
}

// PromptFor retrieves passages for query and assembles the augmented prompt.
func (r *Retriever) PromptFor(ctx context.Context, query string) (string, error) {
	passages, err := r.Retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	return Assemble(query, passages), nil
}
