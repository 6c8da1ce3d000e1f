// Package index reads a directory of documents, splits them into chunks and
// stores their embeddings in a vector store for later retrieval.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/embeddings"
	"github.com/localcompute/g4l/pkg/vector"
)

const defaultBatchSize = 16

// Document is a loaded file split into pages. Page labels are 1-based.
type Document struct {
	Source string
	Pages  []string
}

// Stats summarizes an indexing run.
type Stats struct {
	Files  int
	Chunks int
}

// Config wires an Indexer.
type Config struct {
	Driver   vector.Driver
	Embedder embeddings.Embedder
	Logger   *zap.Logger

	ChunkSize    int
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per request.
	BatchSize int

	NumWorkers uint
}

// Indexer loads, chunks and stores documents.
type Indexer struct {
	pool      *Pool
	driver    vector.Driver
	logger    *zap.Logger
	chunkSize int
	overlap   int
	batchSize int
}

// New creates an Indexer and starts its embedding pool. Call Close when done.
func New(c Config) (*Indexer, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := NewPool(&PoolConfig{
		Driver:     c.Driver,
		Embedder:   c.Embedder,
		NumWorkers: c.NumWorkers,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		pool:      pool,
		driver:    c.Driver,
		logger:    logger,
		chunkSize: c.ChunkSize,
		overlap:   c.ChunkOverlap,
		batchSize: c.BatchSize,
	}
	if ix.chunkSize <= 0 {
		ix.chunkSize = DefaultChunkSize
		ix.overlap = DefaultChunkOverlap
	}
	if ix.batchSize <= 0 {
		ix.batchSize = defaultBatchSize
	}
	return ix, nil
}

// Close drains the embedding pool.
func (ix *Indexer) Close() {
	ix.pool.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "."
}

// ListFiles returns the slash-separated paths of every regular, non-hidden
// file under dir, relative to dir and sorted.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if hidden(d.Name()) && path != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// LoadFile reads dir/rel into pages. A PDF contributes one page per PDF
// page. Text files are split on form feeds, and files that are neither PDF
// nor valid UTF-8 are rejected.
func LoadFile(dir, rel string) (Document, error) {
	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", rel, err)
	}
	if isPDF(raw) {
		pages, err := pdfPages(raw)
		if err != nil {
			return Document{}, fmt.Errorf("reading %s: %w", rel, err)
		}
		return Document{Source: rel, Pages: pages}, nil
	}
	if !utf8.Valid(raw) {
		return Document{}, fmt.Errorf("%s is not a text file", rel)
	}
	return Document{
		Source: rel,
		Pages:  strings.Split(string(raw), "\f"),
	}, nil
}

// ChunkID derives a stable id for the i-th chunk of a page.
func ChunkID(source, page string, i int) string {
	sum := sha256.Sum256([]byte(source + ":" + page + ":" + strconv.Itoa(i)))
	return hex.EncodeToString(sum[:])
}

// Chunks splits doc into vector documents without embeddings.
func (ix *Indexer) Chunks(doc Document) []vector.Document {
	var out []vector.Document
	for p, page := range doc.Pages {
		label := strconv.Itoa(p + 1)
		for i, text := range Chunk(page, ix.chunkSize, ix.overlap) {
			out = append(out, vector.Document{
				ID:        ChunkID(doc.Source, label, i),
				Text:      text,
				Source:    doc.Source,
				PageLabel: label,
			})
		}
	}
	return out
}

// Index indexes every file under dir. Files that cannot be read as text
// are skipped with a warning.
func (ix *Indexer) Index(ctx context.Context, dir string) (Stats, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, rel := range files {
		n, err := ix.IndexFile(ctx, dir, rel)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			ix.logger.Warn("skipping file", zap.String("file", rel), zap.Error(err))
			continue
		}
		stats.Files++
		stats.Chunks += n
	}

	ix.logger.Info("indexed documents",
		zap.String("dir", dir),
		zap.Int("files", stats.Files),
		zap.Int("chunks", stats.Chunks),
	)
	return stats, nil
}

// IndexFile replaces the stored chunks of dir/rel and returns how many were
// written. It waits until every chunk has been embedded and stored.
func (ix *Indexer) IndexFile(ctx context.Context, dir, rel string) (int, error) {
	doc, err := LoadFile(dir, rel)
	if err != nil {
		return 0, err
	}

	if err := ix.driver.DeleteSource(ctx, doc.Source); err != nil {
		return 0, fmt.Errorf("clearing previous chunks of %s: %w", rel, err)
	}

	chunks := ix.Chunks(doc)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for batch := range slices.Chunk(chunks, ix.batchSize) {
		wg.Add(1)
		job := Job{
			Docs: batch,
			Done: func(err error) {
				if err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				wg.Done()
			},
		}
		if err := ix.pool.Submit(ctx, job); err != nil {
			wg.Done()
			wg.Wait()
			return 0, err
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return 0, err
	}

	ix.logger.Debug("indexed file", zap.String("file", rel), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Remove deletes every stored chunk of rel.
func (ix *Indexer) Remove(ctx context.Context, rel string) error {
	if err := ix.driver.DeleteSource(ctx, rel); err != nil {
		return fmt.Errorf("removing chunks of %s: %w", rel, err)
	}
	ix.logger.Debug("removed file from index", zap.String("file", rel))
	return nil
}
