package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/backend/ollama"
	"github.com/localcompute/g4l/pkg/llm"
)

const streamBody = `{"model":"mistral","message":{"role":"assistant","content":"Hel"},"done":false}

{"model":"mistral","message":{"role":"assistant","content":"lo"},"done":false}
{"model":"mistral","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}
`

var _ = Describe("Backend", func() {
	var (
		server  *httptest.Server
		mu      sync.Mutex
		lastReq map[string]any
		status  int
		body    string
	)

	BeforeEach(func() {
		status = http.StatusOK
		body = streamBody
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/chat" {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			mu.Lock()
			lastReq = req
			mu.Unlock()

			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	messages := []llm.ChatMessage{llm.NewTextMessage(llm.RoleUser, "hi")}

	It("streams message deltas from NDJSON", func() {
		b := ollama.New(ollama.Config{BaseURL: server.URL})
		stream, err := b.Generate(context.Background(), "mistral", messages, backend.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(slices.Collect(stream.Tokens())).To(Equal([]string{"Hel", "lo"}))
		Expect(stream.Err()).NotTo(HaveOccurred())
	})

	It("maps options to Ollama names", func() {
		b := ollama.New(ollama.Config{BaseURL: server.URL})
		n, threads := 7, 4
		stream, err := b.Generate(context.Background(), "mistral", messages, backend.Options{
			MaxTokens: &n,
			Threads:   &threads,
			Stop:      []string{"\n"},
		}.WithDefaults())
		Expect(err).NotTo(HaveOccurred())
		stream.Close()

		mu.Lock()
		defer mu.Unlock()
		Expect(lastReq).To(HaveKeyWithValue("stream", true))
		opts, ok := lastReq["options"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(opts).To(HaveKeyWithValue("num_predict", BeNumerically("==", 7)))
		Expect(opts).To(HaveKeyWithValue("num_thread", BeNumerically("==", 4)))
		Expect(opts).To(HaveKeyWithValue("num_ctx", BeNumerically("==", 4900)))
		Expect(opts).To(HaveKeyWithValue("use_mmap", true))
		Expect(opts).NotTo(HaveKey("offload_kqv"))
	})

	It("maps 404 to ErrModelNotFound", func() {
		status = http.StatusNotFound
		body = `{"error":"model 'nope' not found"}`
		b := ollama.New(ollama.Config{BaseURL: server.URL})
		_, err := b.Generate(context.Background(), "nope", messages, backend.Options{})
		Expect(errors.Is(err, llm.ErrModelNotFound)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("not found"))
	})

	It("reports other statuses as backend errors", func() {
		status = http.StatusInternalServerError
		body = "boom"
		b := ollama.New(ollama.Config{BaseURL: server.URL})
		_, err := b.Generate(context.Background(), "mistral", messages, backend.Options{})
		Expect(errors.Is(err, llm.ErrBackend)).To(BeTrue())
	})

	It("surfaces in-stream errors through Err", func() {
		body = `{"message":{"content":"a"},"done":false}
{"error":"out of memory"}
`
		b := ollama.New(ollama.Config{BaseURL: server.URL})
		stream, err := b.Generate(context.Background(), "mistral", messages, backend.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(slices.Collect(stream.Tokens())).To(Equal([]string{"a"}))
		Expect(stream.Err()).To(MatchError(ContainSubstring("out of memory")))
	})
})
