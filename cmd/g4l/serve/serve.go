// Package servecmder provides the serve command, which runs the
// OpenAI-compatible HTTP API and the MCP endpoint.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/api"
	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/logger"
	"github.com/localcompute/g4l/pkg/start"
)

var serveFlags = append(append([]string{config.FlagAPIListen, config.FlagEventsProv}, config.EngineFlags...), config.RetrievalFlags...)

type ServeCommander struct {
	configDir  string
	debug      bool
	logFile    string
	disableMCP bool
	resetIndex bool

	cfg    *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the g4l API server.

Endpoints:
  GET  /ping                   Health check
  POST /v1/chat/completions    OpenAI-compatible chat completions (stream or not)
  GET  /v1/retrieve?query=     Passages for a query (retrieval enabled)
  GET  /v1/prompt?query=       Context-augmented prompt for a query
  ALL  /mcp                    MCP server with "complete" and "retrieve" tools

With retrieval enabled the document index is opened, and built if missing,
before the server starts listening.

Examples:
  g4l serve
  g4l serve -r --listen :9000
  g4l serve --events-provider kafka --log-file g4l.log`

const serveShortDesc string = "Run the API server"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ForCommand(cmd, config.Flags, serveFlags)
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
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddRegisteredFlags(cmd, config.Flags, serveFlags)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the /mcp endpoint")
	cmd.Flags().BoolVar(&cmder.resetIndex, "reset-index", false, "Rebuild the document index before serving")

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	c.logger = log
	defer closeLog()

	stack, err := start.Open(ctx, c.cfg, start.Options{
		ConfigDir:  c.configDir,
		ResetIndex: c.resetIndex,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	defer stack.Close()

	server, err := api.NewServer(api.Config{
		ListenAddr:   c.cfg.API.Listen,
		Engine:       stack.Engine,
		Retriever:    stack.Retriever,
		DefaultModel: c.cfg.Engine.Model,
		DisableMCP:   c.disableMCP,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	c.logger.Info("starting api server",
		zap.String("api_addr", c.cfg.API.Listen),
		zap.String("backend", stack.Backend.Name()),
		zap.String("model", c.cfg.Engine.Model),
		zap.Bool("retrieval", stack.Retriever != nil),
		zap.Bool("mcp", !c.disableMCP),
	)

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

// newLogger returns the console logger, teed into a JSON log file when
// --log-file is set. The returned func syncs and closes both.
func (c *ServeCommander) newLogger() (*zap.Logger, func(), error) {
	console := logger.NewLogger(c.debug)
	if c.logFile == "" {
		return console, func() { _ = console.Sync() }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	tee := logger.Multi(console, file)

	return tee, func() {
		_ = tee.Sync()
		_ = f.Close()
	}, nil
}
