package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/retrieval"
	"github.com/localcompute/g4l/pkg/sse"
)

// RetrieveResponse is the body of GET /v1/retrieve.
type RetrieveResponse struct {
	Query    string              `json:"query"`
	Mode     string              `json:"mode"`
	Passages []retrieval.Passage `json:"passages"`
	Count    int                 `json:"count"`
}

// PromptResponse is the body of GET /v1/prompt.
type PromptResponse struct {
	Query  string `json:"query"`
	Prompt string `json:"prompt"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleChatCompletions handles POST /v1/chat/completions. Streaming
// requests are answered with SSE chunk frames ending in "data: [DONE]".
func (s *Server) handleChatCompletions(c *fiber.Ctx) error {
	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body: " + err.Error()})
	}
	if req.Model == "" {
		req.Model = s.config.DefaultModel
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	ctx := c.UserContext()

	if !req.Stream {
		rec, err := s.config.Engine.Create(ctx, &req)
		if err != nil {
			return s.completionError(c, &req, err)
		}
		return c.JSON(rec)
	}

	res, err := s.config.Engine.Stream(ctx, &req)
	if err != nil {
		return s.completionError(c, &req, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe gives per-chunk flushing: fasthttp writes each chunk to the
	// socket as soon as the pipe reader hands it over.
	pr, pw := io.Pipe()
	go s.writeStream(res, pw, req.Model)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) writeStream(res *engine.StreamResult, pw *io.PipeWriter, model string) {
	defer pw.Close()

	bw := bufio.NewWriter(pw)
	w := sse.NewWriter(bw)

	for chunk := range res.Chunks() {
		if err := w.JSON(chunk); err != nil {
			s.logger.Debug("client went away during stream",
				zap.String("model", model),
				zap.Error(err),
			)
			return
		}
	}

	if err := res.Err(); err != nil {
		s.logger.Warn("stream ended early", zap.String("model", model), zap.Error(err))
	}

	if err := w.Done(); err != nil {
		s.logger.Debug("failed to write stream terminator", zap.Error(err))
	}
}

// completionError maps engine errors to HTTP statuses.
func (s *Server) completionError(c *fiber.Ctx, req *llm.ChatRequest, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, llm.ErrModelNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, llm.ErrRetrieval):
		status = fiber.StatusBadGateway
	}

	s.logger.Error("completion failed",
		zap.String("model", req.Model),
		zap.Int("status", status),
		zap.Error(err),
	)
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error()})
}

// handleRetrieve handles GET /v1/retrieve?query=...
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	query, ok := s.retrievalQuery(c)
	if !ok {
		return nil
	}

	passages, err := s.config.Retriever.Retrieve(c.UserContext(), query)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(RetrieveResponse{
		Query:    query,
		Mode:     string(s.config.Retriever.Mode()),
		Passages: passages,
		Count:    len(passages),
	})
}

// handlePrompt handles GET /v1/prompt?query=... and returns the prompt the
// model would see for query.
func (s *Server) handlePrompt(c *fiber.Ctx) error {
	query, ok := s.retrievalQuery(c)
	if !ok {
		return nil
	}

	prompt, err := s.config.Retriever.PromptFor(c.UserContext(), query)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(PromptResponse{Query: query, Prompt: prompt})
}

// retrievalQuery validates the retrieval preconditions. When it returns
// false the error response has already been written.
func (s *Server) retrievalQuery(c *fiber.Ctx) (string, bool) {
	if s.config.Retriever == nil {
		_ = c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "retrieval is not configured",
		})
		return "", false
	}

	query := c.Query("query")
	if query == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "query parameter is required",
		})
		return "", false
	}
	return query, true
}
