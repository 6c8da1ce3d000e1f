package backend

import "go.uber.org/zap"

const (
	DefaultTemperature   = 0.8
	DefaultMaxTokens     = 4900
	DefaultContextWindow = 4900
	DefaultGPULayers     = 0
)

// Options is the flat configuration bag handed to a backend per call.
// Nil fields are unset and are left out of backend requests.
type Options struct {
	MaxTokens     *int
	Stop          []string
	GPULayers     *int
	Threads       *int
	UseMMap       *bool
	UseMLock      *bool
	OffloadKQV    *bool
	ContextWindow *int
	Temperature   *float64
}

func ptr[T any](v T) *T { return &v }

// WithDefaults returns a copy of o with every unset field except Threads
// and Stop filled with the backend default. o is not modified.
func (o Options) WithDefaults() Options {
	out := o
	if out.MaxTokens == nil {
		out.MaxTokens = ptr(DefaultMaxTokens)
	}
	if out.GPULayers == nil {
		out.GPULayers = ptr(DefaultGPULayers)
	}
	if out.UseMMap == nil {
		out.UseMMap = ptr(true)
	}
	if out.UseMLock == nil {
		out.UseMLock = ptr(false)
	}
	if out.OffloadKQV == nil {
		out.OffloadKQV = ptr(true)
	}
	if out.ContextWindow == nil {
		out.ContextWindow = ptr(DefaultContextWindow)
	}
	if out.Temperature == nil {
		out.Temperature = ptr(DefaultTemperature)
	}
	if out.Stop != nil {
		out.Stop = append([]string(nil), out.Stop...)
	}
	return out
}

// Map returns the set fields keyed by their llama.cpp option names.
func (o Options) Map() map[string]any {
	m := map[string]any{}
	if o.MaxTokens != nil {
		m["max_tokens"] = *o.MaxTokens
	}
	if len(o.Stop) > 0 {
		m["stop"] = o.Stop
	}
	if o.GPULayers != nil {
		m["n_gpu_layers"] = *o.GPULayers
	}
	if o.Threads != nil {
		m["threads"] = *o.Threads
	}
	if o.UseMMap != nil {
		m["use_mmap"] = *o.UseMMap
	}
	if o.UseMLock != nil {
		m["use_mlock"] = *o.UseMLock
	}
	if o.OffloadKQV != nil {
		m["offload_kqv"] = *o.OffloadKQV
	}
	if o.ContextWindow != nil {
		m["n_ctx"] = *o.ContextWindow
	}
	if o.Temperature != nil {
		m["temperature"] = *o.Temperature
	}
	return m
}

// Fields renders the set options for structured logging.
func (o Options) Fields() []zap.Field {
	m := o.Map()
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}
