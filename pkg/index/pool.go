package index

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/embeddings"
	"github.com/localcompute/g4l/pkg/vector"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a batch of chunks to embed and store. Done, when set, is called
// exactly once with the outcome.
type Job struct {
	Docs []vector.Document
	Done func(error)
}

// PoolConfig is the configuration for the embedding pool.
type PoolConfig struct {
	// Driver stores the embedded chunks.
	Driver vector.Driver

	// Embedder turns chunk text into vectors.
	Embedder embeddings.Embedder

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *zap.Logger
}

// Pool embeds and stores chunk batches on a fixed set of workers.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a pool and starts its workers.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Driver == nil || c.Embedder == nil {
		return nil, fmt.Errorf("pool requires a vector driver and an embedder")
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}
	return p, nil
}

// Submit queues job, blocking while the queue is full. It returns ctx's
// error if ctx ends first, in which case Done is not called.
func (p *Pool) Submit(ctx context.Context, job Job) error {
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues job without blocking and reports whether it was accepted.
func (p *Pool) TrySubmit(job Job) bool {
	select {
	case p.queue <- job:
		return true
	default:
		p.logger.Warn("index job dropped, queue full", zap.Int("chunks", len(job.Docs)))
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to drain.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("index worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		err := p.process(context.Background(), job.Docs)
		if err != nil {
			p.logger.Warn("index job failed", zap.Uint("worker_id", id), zap.Error(err))
		}
		if job.Done != nil {
			job.Done(err)
		}
	}

	p.logger.Debug("index worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) process(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	vecs, err := embeddings.EmbedAll(ctx, p.config.Embedder, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks of %s: %w", len(docs), docs[0].Source, err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", vector.ErrEmbedding, len(vecs), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vecs[i]
	}

	if err := p.config.Driver.Add(ctx, docs); err != nil {
		return fmt.Errorf("storing chunks of %s: %w", docs[0].Source, err)
	}

	p.logger.Debug("stored chunks",
		zap.String("source", docs[0].Source),
		zap.Int("count", len(docs)),
	)
	return nil
}
