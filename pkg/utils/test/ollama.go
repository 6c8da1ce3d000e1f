package testutils

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"sync"
)

// OllamaServer is an httptest server speaking the two Ollama endpoints g4l
// uses: streamed /api/chat and /api/embed.
type OllamaServer struct {
	*httptest.Server

	mu       sync.Mutex
	tokens   []string
	dims     int
	models   map[string]bool
	requests []map[string]any
}

// NewOllamaServer starts a server that answers every chat with tokens and
// embeds text into dims-sized vectors derived from the text.
func NewOllamaServer(dims int, tokens ...string) *OllamaServer {
	s := &OllamaServer{tokens: tokens, dims: dims}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/embed", s.handleEmbed)
	s.Server = httptest.NewServer(mux)

	return s
}

// OnlyModels makes the chat endpoint answer 404 for any other model.
func (s *OllamaServer) OnlyModels(models ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = make(map[string]bool, len(models))
	for _, m := range models {
		s.models[m] = true
	}
}

// ChatRequests returns the decoded /api/chat bodies received so far.
func (s *OllamaServer) ChatRequests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.requests...)
}

func (s *OllamaServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	known := s.models == nil || s.models[fmt.Sprint(req["model"])]
	s.mu.Unlock()

	if !known {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"error":"model %q not found"}`, req["model"])
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, token := range s.tokens {
		_ = enc.Encode(map[string]any{
			"model":   req["model"],
			"message": map[string]string{"role": "assistant", "content": token},
			"done":    false,
		})
	}
	_ = enc.Encode(map[string]any{
		"model":       req["model"],
		"message":     map[string]string{"role": "assistant", "content": ""},
		"done":        true,
		"done_reason": "stop",
	})
}

func (s *OllamaServer) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input json.RawMessage `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		return
	}

	var inputs []string
	if err := json.Unmarshal(req.Input, &inputs); err != nil {
		var single string
		if err := json.Unmarshal(req.Input, &single); err != nil {
			http.Error(w, `{"error":"bad input"}`, http.StatusBadRequest)
			return
		}
		inputs = []string{single}
	}

	out := make([][]float32, 0, len(inputs))
	for _, text := range inputs {
		out = append(out, s.vector(text))
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
}

// vector spreads an FNV hash of text over dims components in [0, 1).
func (s *OllamaServer) vector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, s.dims)
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		v[i] = float32(seed>>40) / float32(1<<24)
	}
	return v
}
