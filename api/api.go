package api

import (
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apimcp "github.com/localcompute/g4l/api/mcp"
)

// Server is the g4l API server.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The engine is injected so the CLI and the server share one backend.
func NewServer(config Config, logger *zap.Logger) (*Server, error) {
	if config.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/chat/completions", s.handleChatCompletions)
	app.Get("/v1/retrieve", s.handleRetrieve)
	app.Get("/v1/prompt", s.handlePrompt)

	if !config.DisableMCP {
		mcpServer, err := apimcp.NewServer(apimcp.Config{
			Engine:       config.Engine,
			Retriever:    config.Retriever,
			DefaultModel: config.DefaultModel,
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.Bool("retrieval", s.config.Retriever != nil),
		zap.Bool("mcp", !s.config.DisableMCP),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
