package llamacpp

// completionRequest is the body of POST /v1/chat/completions on
// llama-server. The load-time fields use llama-server's names.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Stream      bool      `json:"stream"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stop        []string  `json:"stop,omitempty"`

	NGPULayers *int  `json:"n_gpu_layers,omitempty"`
	Threads    *int  `json:"threads,omitempty"`
	UseMMap    *bool `json:"use_mmap,omitempty"`
	UseMLock   *bool `json:"use_mlock,omitempty"`
	OffloadKQV *bool `json:"offload_kqv,omitempty"`
	NCtx       *int  `json:"n_ctx,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamChunk is the JSON payload of one SSE data event.
type streamChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
