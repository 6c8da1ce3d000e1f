// Package backendutils builds inference backends from configuration.
package backendutils

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/backend"
	"github.com/localcompute/g4l/pkg/backend/llamacpp"
	"github.com/localcompute/g4l/pkg/backend/ollama"
)

type NewBackendOpts struct {
	ProviderType string
	TargetURL    string
	ModelsDir    string
	Logger       *zap.Logger
}

// NewBackend builds the backend named by o.ProviderType.
func NewBackend(o *NewBackendOpts) (backend.Backend, error) {
	switch o.ProviderType {
	case ollama.Name, "":
		return ollama.New(ollama.Config{BaseURL: o.TargetURL, Logger: o.Logger}), nil
	case llamacpp.Name:
		return llamacpp.New(llamacpp.Config{
			BaseURL:   o.TargetURL,
			ModelsDir: o.ModelsDir,
			Logger:    o.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", o.ProviderType)
	}
}
