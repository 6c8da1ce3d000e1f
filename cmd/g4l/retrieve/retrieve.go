// Package retrievecmder provides the retrieve command for inspecting which
// passages a query pulls from the document index.
package retrievecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

type retrieveCommander struct {
	configDir  string
	debug      bool
	prompt     bool
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

const retrieveLongDesc string = `Retrieve the passages that best match a query.

Passages are ranked by similarity and the number returned follows the
retrieval mode: subtle (1), default (2), aggressive (5), very-aggressive (10).
The index is built first if it does not exist yet.

Use --prompt to print the context-augmented prompt the model would receive.

Examples:
  g4l retrieve "what inventions did he do"
  g4l retrieve --mode very-aggressive "relativity"
  g4l retrieve --prompt "what inventions did he do"`

const retrieveShortDesc string = "Show passages retrieved for a query"

func NewRetrieveCmd() *cobra.Command {
	cmder := &retrieveCommander{}

	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: retrieveShortDesc,
		Long:  retrieveLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, config.RetrievalFlags)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.cfg = cfg
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.OutOrStdout()
			return cmder.run(cmd.Context(), strings.Join(args, " "))
		},
	}

	config.AddRegisteredFlags(cmd, config.Flags, config.RetrievalFlags)
	cmd.Flags().BoolVarP(&cmder.prompt, "prompt", "p", false, "Print the assembled prompt instead of the passages")
	cmd.Flags().BoolVar(&cmder.jsonOutput, "json", false, "Print the passages as JSON")

	return cmd
}

func (c *retrieveCommander) run(ctx context.Context, query string) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	ix, err := start.OpenIndex(ctx, c.cfg, start.IndexOptions{ConfigDir: c.configDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer ix.Close()

	built, stats, err := ix.Ensure(ctx)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	if built {
		c.logger.Info("built document index", zap.Int("files", stats.Files), zap.Int("chunks", stats.Chunks))
	}

	retriever, err := ix.Retriever()
	if err != nil {
		return err
	}

	if c.prompt {
		prompt, err := retriever.PromptFor(ctx, query)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, prompt)
		return err
	}

	passages, err := retriever.Retrieve(ctx, query)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(passages)
	}

	return cliui.WritePassages(c.out, query, passages, c.width())
}

func (c *retrieveCommander) width() int {
	if f, ok := c.out.(*os.File); ok {
		return cliui.Width(f)
	}
	return 80
}
