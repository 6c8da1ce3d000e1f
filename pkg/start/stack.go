package start

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/backend/llamacpp"
	backendutils "github.com/localcompute/g4l/pkg/backend/utils"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/dotdir"
	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/events"
	eventsutils "github.com/localcompute/g4l/pkg/events/utils"
	"github.com/localcompute/g4l/pkg/retrieval"
)

// Options controls Open.
type Options struct {
	// ConfigDir overrides the .g4l directory.
	ConfigDir string

	// ResetIndex rebuilds the document index from scratch.
	ResetIndex bool

	Logger *zap.Logger
}

// Stack is every component a g4l command needs, opened from one Config.
type Stack struct {
	Config    *config.Config
	Backend   backend.Backend
	Engine    *engine.Engine
	Publisher events.Publisher

	// Index and Retriever are nil when retrieval is disabled.
	Index     *Index
	Retriever *retrieval.Retriever
}

// Open builds the backend, the event publisher and the engine. With
// retrieval enabled it also opens the document index, building it first
// if it does not exist yet.
func Open(ctx context.Context, cfg *config.Config, o Options) (*Stack, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	modelsDir, err := resolveModelsDir(cfg, o.ConfigDir)
	if err != nil {
		return nil, err
	}

	b, err := backendutils.NewBackend(&backendutils.NewBackendOpts{
		ProviderType: cfg.Engine.Backend,
		TargetURL:    cfg.Engine.Target,
		ModelsDir:    modelsDir,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	pub, err := eventsutils.NewPublisher(&eventsutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.Brokers,
		Topic:        cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	s := &Stack{
		Config:    cfg,
		Backend:   b,
		Publisher: pub,
	}

	opts := []engine.Option{
		engine.WithGPULayers(cfg.Engine.GPULayers),
		engine.WithCores(cfg.Engine.Cores),
		engine.WithUseMMap(cfg.Engine.UseMMap),
		engine.WithUseMLock(cfg.Engine.UseMLock),
		engine.WithOffloadKQV(cfg.Engine.OffloadKQV),
		engine.WithContextWindow(cfg.Engine.ContextWindow),
		engine.WithTemperature(cfg.Engine.Temperature),
		engine.WithRequireRetrieval(cfg.Retrieval.Require),
		engine.WithPublisher(pub),
		engine.WithLogger(logger),
	}

	if cfg.Retrieval.Enabled {
		ix, err := OpenIndex(ctx, cfg, IndexOptions{
			ConfigDir: o.ConfigDir,
			Reset:     o.ResetIndex,
			Logger:    logger,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Index = ix

		built, stats, err := ix.Ensure(ctx)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("building index: %w", err)
		}
		if built {
			logger.Info("built document index",
				zap.String("storage_id", ix.ID),
				zap.Int("files", stats.Files),
				zap.Int("chunks", stats.Chunks),
			)
		}

		s.Retriever, err = ix.Retriever()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		opts = append(opts, engine.WithRetriever(s.Retriever))
	}

	s.Engine = engine.New(b, opts...)
	return s, nil
}

// resolveModelsDir places relative model directories inside the .g4l
// directory. Only the llamacpp backend reads model files.
func resolveModelsDir(cfg *config.Config, configDir string) (string, error) {
	if cfg.Engine.Backend != llamacpp.Name {
		return cfg.Engine.ModelsDir, nil
	}

	ddm := dotdir.NewManager()
	dir := cfg.Engine.ModelsDir
	switch {
	case dir == "":
		return ddm.ModelsDir(configDir)
	case filepath.IsAbs(dir):
		return dir, nil
	default:
		target, err := ddm.Target(configDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(target, dir), nil
	}
}

// Close releases the index and flushes the publisher.
func (s *Stack) Close() error {
	var errs []error
	if s.Index != nil {
		errs = append(errs, s.Index.Close())
	}
	if s.Publisher != nil {
		errs = append(errs, s.Publisher.Close())
	}
	return errors.Join(errs...)
}
