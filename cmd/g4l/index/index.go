// Package indexcmder provides the index command, which embeds the documents
// directory into the configured vector store.
package indexcmder

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/index"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

type indexCommander struct {
	configDir string
	debug     bool
	reset     bool
	watch     bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

const indexLongDesc string = `Index the documents directory for retrieval.

Each file is split into overlapping chunks, embedded with the configured
embedding provider, and stored in the vector store. The store is keyed by
the document list and the embedding model, so changing either starts a new
index. An existing index is reused unless --reset is given.

With --watch the command keeps running and re-indexes files as they are
created, changed, or removed.

Examples:
  g4l index
  g4l index --docs ./papers --reset
  g4l index --watch
  g4l index --vector-store-provider qdrant --vector-store-target localhost:6334`

const indexShortDesc string = "Index documents for retrieval"

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, config.RetrievalFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context())
		},
	}

	config.AddRegisteredFlags(cmd, config.Flags, config.RetrievalFlags)
	cmd.Flags().BoolVar(&cmder.reset, "reset", false, "Discard the stored index and rebuild it")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep the index in sync with the documents directory")

	return cmd
}

func (c *indexCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ix, err := start.OpenIndex(ctx, c.cfg, start.IndexOptions{
		ConfigDir: c.configDir,
		Reset:     c.reset,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	defer ix.Close()

	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Documents:"), cliui.ValueStyle.Render(ix.DocsDir))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Storage:"), cliui.DimStyle.Render(ix.State.Dir))
	fmt.Fprintf(c.out, "  %s %s\n\n", cliui.KeyStyle.Render("Vector store:"), cliui.ValueStyle.Render(c.cfg.VectorStore.Provider))

	if ix.Exists() {
		if err := c.printState(ix); err != nil {
			return err
		}
	} else {
		var stats index.Stats
		err := cliui.Step(c.out, fmt.Sprintf("Indexing %d documents", len(ix.Files)), func() error {
			var err error
			stats, err = ix.Build(ctx)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "  %s %d files, %d chunks\n", cliui.SuccessMark, stats.Files, stats.Chunks)
	}

	if !c.watch {
		fmt.Fprintln(c.out)
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(c.out, "\n  %s\n", cliui.DimStyle.Render("Watching for changes. Ctrl+C to stop."))
	c.logger.Info("watching documents", zap.String("dir", ix.DocsDir))

	if err := ix.Watch(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (c *indexCommander) printState(ix *start.Index) error {
	state, err := ix.State.LoadState()
	if err != nil {
		return err
	}

	if state == nil {
		fmt.Fprintf(c.out, "  %s Index already built\n", cliui.SuccessMark)
		return nil
	}

	fmt.Fprintf(c.out, "  %s Index up to date %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(fmt.Sprintf("(%d files, %d chunks, built %s)",
			len(state.Files), state.Chunks, state.UpdatedAt.Format("2006-01-02 15:04"))),
	)
	fmt.Fprintf(c.out, "  %s\n", cliui.DimStyle.Render("Run with --reset to rebuild."))
	return nil
}
