// Package benchcmder provides the bench command for measuring streaming
// throughput of the configured model.
package benchcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/bench"
	"github.com/localcompute/g4l/pkg/cliui"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

const defaultMessage = "Write a short story about a lighthouse keeper."

type benchCommander struct {
	configDir  string
	debug      bool
	iterations int
	message    string

	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
}

const benchLongDesc string = `Benchmark streaming completions.

Streams the same single-message prompt several times and reports the
averages: time to the first chunk (loading), chunks generated, generation
time, and tokens per second.

Examples:
  g4l bench
  g4l bench --model llama3.2 --iterations 10
  g4l bench --backend llamacpp --gpu-layers -1 --message "Count to fifty"`

const benchShortDesc string = "Benchmark streaming throughput"

func NewBenchCmd() *cobra.Command {
	cmder := &benchCommander{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: benchShortDesc,
		Long:  benchLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, config.EngineFlags)
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

	config.AddRegisteredFlags(cmd, config.Flags, config.EngineFlags)
	cmd.Flags().IntVarP(&cmder.iterations, "iterations", "n", 5, "Number of completions to average over")
	cmd.Flags().StringVar(&cmder.message, "message", defaultMessage, "Prompt sent on every iteration")

	return cmd
}

func (c *benchCommander) run(ctx context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	// Retrieval would add embedding and search time to every iteration.
	cfg := *c.cfg
	cfg.Retrieval.Enabled = false

	stack, err := start.Open(ctx, &cfg, start.Options{ConfigDir: c.configDir, Logger: c.logger})
	if err != nil {
		return err
	}
	defer stack.Close()

	var result bench.Result
	err = cliui.Step(c.out, fmt.Sprintf("Running %d iterations", c.iterations), func() error {
		var err error
		result, err = bench.Run(ctx, stack.Engine, cfg.Engine.Model, c.message, c.iterations)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out)
	return result.Write(c.out)
}
