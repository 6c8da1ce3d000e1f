package config

import "github.com/localcompute/g4l/pkg/events"

const (
	defaultBackend       = "ollama"
	defaultTarget        = "http://localhost:11434"
	defaultModel         = "mistral-7b-instruct"
	defaultContextWindow = 4900
	defaultTemperature   = 0.8

	defaultRetrievalMode = "default"
	defaultDocumentsDir  = "files"

	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultAPIListen = ":8081"

	defaultEventsProvider = "nop"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Engine: EngineConfig{
			Backend:       defaultBackend,
			Target:        defaultTarget,
			Model:         defaultModel,
			GPULayers:     0,
			UseMMap:       true,
			UseMLock:      false,
			OffloadKQV:    true,
			ContextWindow: defaultContextWindow,
			Temperature:   defaultTemperature,
		},
		Retrieval: RetrievalConfig{
			Mode:         defaultRetrievalMode,
			DocumentsDir: defaultDocumentsDir,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    events.DefaultTopic,
		},
	}
}
