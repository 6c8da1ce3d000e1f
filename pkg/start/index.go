package start

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/dotdir"
	"github.com/localcompute/g4l/pkg/embeddings"
	embeddingutils "github.com/localcompute/g4l/pkg/embeddings/utils"
	"github.com/localcompute/g4l/pkg/index"
	"github.com/localcompute/g4l/pkg/retrieval"
	"github.com/localcompute/g4l/pkg/vector"
	vectorutils "github.com/localcompute/g4l/pkg/vector/utils"
)

// IndexOptions controls how an index is opened.
type IndexOptions struct {
	// ConfigDir overrides the .g4l directory.
	ConfigDir string

	// Reset discards any stored chunks so the next Ensure rebuilds.
	Reset bool

	Logger *zap.Logger
}

// Index is an opened document index: the documents it covers, the vector
// store holding their chunks and the embedder used for both.
type Index struct {
	ID       string
	DocsDir  string
	Files    []string
	Driver   vector.Driver
	Embedder embeddings.Embedder
	State    *Manager

	cfg    *config.Config
	logger *zap.Logger
	exists bool
}

// OpenIndex resolves the storage id for the configured documents and opens
// the matching store. Nothing is embedded until Ensure or Build runs.
func OpenIndex(ctx context.Context, cfg *config.Config, o IndexOptions) (*Index, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	docs := cfg.Retrieval.DocumentsDir
	files, err := index.ListFiles(docs)
	if err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}
	id := index.StorageID(files, cfg.Embedding.Model)

	storageRoot, err := dotdir.NewManager().StorageDir(o.ConfigDir)
	if err != nil {
		return nil, err
	}
	mgr, err := NewManager(filepath.Join(storageRoot, index.StorageName(id)))
	if err != nil {
		return nil, err
	}
	if o.Reset {
		if err := mgr.ClearState(); err != nil {
			return nil, err
		}
	}

	driverOpts := &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Collection:   index.StorageName(id),
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       logger,
	}

	local := isLocal(cfg.VectorStore.Provider)
	exists := false
	if local {
		path := cfg.VectorStore.SQLitePath
		if path == "" {
			path = index.SQLitePath(storageRoot, id)
		}
		if o.Reset {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("resetting index: %w", err)
			}
		}
		if _, err := os.Stat(path); err == nil {
			exists = true
		}
		driverOpts.SQLitePath = path
	}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(ctx, driverOpts)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	ix := &Index{
		ID:       id,
		DocsDir:  docs,
		Files:    files,
		Driver:   driver,
		Embedder: embedder,
		State:    mgr,
		cfg:      cfg,
		logger:   logger,
		exists:   exists,
	}

	if !local && o.Reset {
		if err := ix.clearRemote(ctx); err != nil {
			_ = ix.Close()
			return nil, err
		}
	}

	// A local database file can be left behind by an interrupted build, so
	// both kinds of store must also hold chunks to count as built.
	if !local || exists {
		n, err := driver.Count(ctx)
		ix.exists = err == nil && n > 0
	}

	logger.Debug("opened index",
		zap.String("storage_id", id),
		zap.String("provider", cfg.VectorStore.Provider),
		zap.Int("files", len(files)),
		zap.Bool("exists", ix.exists),
	)
	return ix, nil
}

func isLocal(provider string) bool {
	return provider == "" || provider == "sqlite"
}

// clearRemote deletes the chunks of every file this index covers.
func (ix *Index) clearRemote(ctx context.Context) error {
	for _, f := range ix.Files {
		if err := ix.Driver.DeleteSource(ctx, f); err != nil {
			return fmt.Errorf("resetting index: %w", err)
		}
	}
	return nil
}

// Exists reports whether the store already held chunks when opened, or has
// been built since.
func (ix *Index) Exists() bool {
	return ix.exists
}

// Ensure builds the index unless it already exists. It reports whether a
// build ran.
func (ix *Index) Ensure(ctx context.Context) (bool, index.Stats, error) {
	if ix.exists {
		return false, index.Stats{}, nil
	}
	stats, err := ix.Build(ctx)
	return err == nil, stats, err
}

// Build embeds and stores every document, holding the index lock while it
// runs, then records the index state.
func (ix *Index) Build(ctx context.Context) (index.Stats, error) {
	lock, err := ix.State.Lock()
	if err != nil {
		return index.Stats{}, err
	}
	defer func() { _ = lock.Release() }()

	indexer, err := ix.newIndexer()
	if err != nil {
		return index.Stats{}, err
	}
	defer indexer.Close()

	stats, err := indexer.Index(ctx, ix.DocsDir)
	if err != nil {
		return stats, err
	}

	state := &State{
		StorageID:  ix.ID,
		Provider:   ix.cfg.VectorStore.Provider,
		EmbedModel: ix.cfg.Embedding.Model,
		Files:      slices.Clone(ix.Files),
		Chunks:     stats.Chunks,
	}
	if err := ix.State.SaveState(state); err != nil {
		ix.logger.Warn("failed to save index state", zap.Error(err))
	}

	ix.exists = true
	return stats, nil
}

// Watch keeps the store in sync with the documents directory until ctx is
// done.
func (ix *Index) Watch(ctx context.Context) error {
	indexer, err := ix.newIndexer()
	if err != nil {
		return err
	}
	defer indexer.Close()

	return indexer.Watch(ctx, ix.DocsDir, index.DefaultDebounce)
}

// Retriever returns a retriever over this index using the configured mode.
func (ix *Index) Retriever() (*retrieval.Retriever, error) {
	mode, err := retrieval.ParseMode(ix.cfg.Retrieval.Mode)
	if err != nil {
		return nil, err
	}
	return retrieval.New(retrieval.Config{
		Embedder: ix.Embedder,
		Driver:   ix.Driver,
		Mode:     mode,
		Logger:   ix.logger,
	})
}

func (ix *Index) newIndexer() (*index.Indexer, error) {
	return index.New(index.Config{
		Driver:   ix.Driver,
		Embedder: ix.Embedder,
		Logger:   ix.logger,
	})
}

// Close releases the store and the embedder.
func (ix *Index) Close() error {
	return errors.Join(ix.Driver.Close(), ix.Embedder.Close())
}
