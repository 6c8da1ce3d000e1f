package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/retrieval"
	testutils "github.com/localcompute/g4l/pkg/utils/test"
	"github.com/localcompute/g4l/pkg/vector"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(b)
}

var _ = Describe("Server", func() {
	var (
		server       *Server
		backend      *testutils.MockBackend
		vectorDriver *testutils.MockVectorDriver
		retriever    *retrieval.Retriever
	)

	newServer := func(cfg Config) *Server {
		s, err := NewServer(cfg, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	BeforeEach(func() {
		backend = testutils.NewMockBackend("Hello", ", world", "!")
		backend.Models = []string{"mistral"}

		vectorDriver = testutils.NewMockVectorDriver()
		vectorDriver.Results = []vector.QueryResult{{
			Document: vector.Document{
				Text:      "Einstein invented the photoelectric effect explanation",
				Source:    "einstein-albert.txt",
				PageLabel: "3",
			},
			Score: 0.91,
		}}

		var err error
		retriever, err = retrieval.New(retrieval.Config{
			Embedder: testutils.NewMockEmbedder(),
			Driver:   vectorDriver,
		})
		Expect(err).NotTo(HaveOccurred())

		server = newServer(Config{
			ListenAddr:   ":0",
			Engine:       engine.New(backend),
			Retriever:    retriever,
			DefaultModel: "mistral",
		})
	})

	It("requires an engine", func() {
		_, err := NewServer(Config{}, zap.NewNop())
		Expect(err).To(MatchError(ContainSubstring("engine is required")))
	})

	It("answers ping", func() {
		resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(readBody(resp)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/chat/completions", func() {
		It("returns a chat.completion object", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"model":"mistral","messages":[{"role":"user","content":"hi"}],"stop":"world"}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body struct {
				ID      string `json:"id"`
				Object  string `json:"object"`
				Choices []struct {
					Message      llm.ChatMessage `json:"message"`
					FinishReason string          `json:"finish_reason"`
				} `json:"choices"`
			}
			Expect(json.Unmarshal([]byte(readBody(resp)), &body)).To(Succeed())
			Expect(body.Object).To(Equal("chat.completion"))
			Expect(body.ID).To(HavePrefix("chatcmpl-"))
			Expect(body.Choices).To(HaveLen(1))
			Expect(body.Choices[0].Message.Content).To(Equal("Hello, "))
			Expect(body.Choices[0].FinishReason).To(Equal("stop"))
		})

		It("falls back to the default model", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"messages":[{"role":"user","content":"hi"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring("Hello, world!"))
		})

		It("streams chunks ending in [DONE]", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"model":"mistral","stream":true,"messages":[{"role":"user","content":"hi"}]}`), -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))

			body := readBody(resp)
			frames := strings.Split(strings.TrimSpace(body), "\n\n")
			Expect(frames).To(HaveLen(5))
			Expect(frames[4]).To(Equal("data: [DONE]"))
			Expect(frames[0]).To(ContainSubstring(`"object":"chat.completion.chunk"`))
			Expect(frames[0]).To(ContainSubstring(`"content":"Hello"`))
			Expect(frames[3]).To(ContainSubstring(`"finish_reason":"stop"`))
		})

		It("returns 404 for an unknown model", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"model":"missing","messages":[{"role":"user","content":"hi"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(readBody(resp)).To(ContainSubstring("model not found"))
		})

		It("returns 404 for an unknown model when streaming", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"model":"missing","stream":true,"messages":[{"role":"user","content":"hi"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a malformed body", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions", `{"model":`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 for an invalid request", func() {
			resp, err := server.app.Test(postJSON("/v1/chat/completions", `{"model":"mistral","messages":[]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(readBody(resp)).To(ContainSubstring("at least one message"))
		})

		It("returns 502 when required retrieval fails", func() {
			vectorDriver.QueryErr = errors.New("index offline")
			server = newServer(Config{
				Engine:       engine.New(backend, engine.WithRetriever(retriever), engine.WithRequireRetrieval(true)),
				DefaultModel: "mistral",
			})

			resp, err := server.app.Test(postJSON("/v1/chat/completions",
				`{"messages":[{"role":"user","content":"hi"}]}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(backend.Calls()).To(Equal(0))
		})
	})

	Describe("GET /v1/retrieve", func() {
		It("returns ranked passages", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/retrieve?query=inventions", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body RetrieveResponse
			Expect(json.Unmarshal([]byte(readBody(resp)), &body)).To(Succeed())
			Expect(body.Mode).To(Equal("default"))
			Expect(body.Count).To(Equal(1))
			Expect(body.Passages[0].PageLabel).To(Equal("3"))
			Expect(vectorDriver.LastTopK).To(Equal(2))
		})

		It("requires a query", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/retrieve", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 without a retriever", func() {
			server = newServer(Config{Engine: engine.New(backend)})
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/retrieve?query=x", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		It("returns 502 when the index fails", func() {
			vectorDriver.QueryErr = errors.New("index offline")
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/retrieve?query=x", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})
	})

	Describe("GET /v1/prompt", func() {
		It("returns the assembled prompt", func() {
			resp, err := server.app.Test(httptest.NewRequest(http.MethodGet, "/v1/prompt?query=what+inventions+did+he+do", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body PromptResponse
			Expect(json.Unmarshal([]byte(readBody(resp)), &body)).To(Succeed())
			Expect(body.Prompt).To(ContainSubstring("file name: einstein-albert.txt"))
			Expect(body.Prompt).To(HaveSuffix("Query: what inventions did he do\nAnswer: "))
		})
	})
})
