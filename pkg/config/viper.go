package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/localcompute/g4l/pkg/dotdir"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "G4L"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the G4L_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (G4L_ENGINE_MODEL, G4L_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Engine
	v.SetDefault("engine.backend", d.Engine.Backend)
	v.SetDefault("engine.target", d.Engine.Target)
	v.SetDefault("engine.models_dir", d.Engine.ModelsDir)
	v.SetDefault("engine.model", d.Engine.Model)
	v.SetDefault("engine.gpu_layers", d.Engine.GPULayers)
	v.SetDefault("engine.cores", d.Engine.Cores)
	v.SetDefault("engine.use_mmap", d.Engine.UseMMap)
	v.SetDefault("engine.use_mlock", d.Engine.UseMLock)
	v.SetDefault("engine.offload_kqv", d.Engine.OffloadKQV)
	v.SetDefault("engine.context_window", d.Engine.ContextWindow)
	v.SetDefault("engine.temperature", d.Engine.Temperature)

	// Retrieval
	v.SetDefault("retrieval.enabled", d.Retrieval.Enabled)
	v.SetDefault("retrieval.mode", d.Retrieval.Mode)
	v.SetDefault("retrieval.documents_dir", d.Retrieval.DocumentsDir)
	v.SetDefault("retrieval.require", d.Retrieval.Require)

	// Vector store
	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)
	v.SetDefault("vector_store.sqlite_path", d.VectorStore.SQLitePath)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}

// FromViper reads the effective configuration out of v.
func FromViper(v *viper.Viper) *Config {
	brokers := v.GetStringSlice("events.brokers")
	if len(brokers) == 1 {
		// G4L_EVENTS_BROKERS arrives as a single comma separated string.
		brokers = splitList(brokers[0])
	}
	if len(brokers) == 0 {
		brokers = nil
	}

	return &Config{
		Version: v.GetInt("version"),
		Engine: EngineConfig{
			Backend:       v.GetString("engine.backend"),
			Target:        v.GetString("engine.target"),
			ModelsDir:     v.GetString("engine.models_dir"),
			Model:         v.GetString("engine.model"),
			GPULayers:     v.GetInt("engine.gpu_layers"),
			Cores:         v.GetInt("engine.cores"),
			UseMMap:       v.GetBool("engine.use_mmap"),
			UseMLock:      v.GetBool("engine.use_mlock"),
			OffloadKQV:    v.GetBool("engine.offload_kqv"),
			ContextWindow: v.GetInt("engine.context_window"),
			Temperature:   v.GetFloat64("engine.temperature"),
		},
		Retrieval: RetrievalConfig{
			Enabled:      v.GetBool("retrieval.enabled"),
			Mode:         v.GetString("retrieval.mode"),
			DocumentsDir: v.GetString("retrieval.documents_dir"),
			Require:      v.GetBool("retrieval.require"),
		},
		VectorStore: VectorStoreConfig{
			Provider:   v.GetString("vector_store.provider"),
			Target:     v.GetString("vector_store.target"),
			SQLitePath: v.GetString("vector_store.sqlite_path"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  brokers,
			Topic:    v.GetString("events.topic"),
		},
	}
}
