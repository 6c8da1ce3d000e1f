package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent g4l configuration stored as config.toml
// in the .g4l/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Engine      EngineConfig      `toml:"engine"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	API         APIConfig         `toml:"api"`
	Events      EventsConfig      `toml:"events"`
}

// EngineConfig holds inference backend and model load settings.
type EngineConfig struct {
	Backend       string  `toml:"backend,omitempty"`
	Target        string  `toml:"target,omitempty"`
	ModelsDir     string  `toml:"models_dir,omitempty"`
	Model         string  `toml:"model,omitempty"`
	GPULayers     int     `toml:"gpu_layers"`
	Cores         int     `toml:"cores"`
	UseMMap       bool    `toml:"use_mmap"`
	UseMLock      bool    `toml:"use_mlock"`
	OffloadKQV    bool    `toml:"offload_kqv"`
	ContextWindow int     `toml:"context_window,omitempty"`
	Temperature   float64 `toml:"temperature,omitempty"`
}

// RetrievalConfig holds document retrieval settings.
type RetrievalConfig struct {
	Enabled      bool   `toml:"enabled"`
	Mode         string `toml:"mode,omitempty"`
	DocumentsDir string `toml:"documents_dir,omitempty"`

	// Require aborts a completion when retrieval fails instead of
	// answering without context.
	Require bool `toml:"require"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds completion event publishing settings.
type EventsConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"engine.backend":        stringKey(func(c *Config) *string { return &c.Engine.Backend }),
	"engine.target":         stringKey(func(c *Config) *string { return &c.Engine.Target }),
	"engine.models_dir":     stringKey(func(c *Config) *string { return &c.Engine.ModelsDir }),
	"engine.model":          stringKey(func(c *Config) *string { return &c.Engine.Model }),
	"engine.gpu_layers":     intKey("engine.gpu_layers", func(c *Config) *int { return &c.Engine.GPULayers }),
	"engine.cores":          intKey("engine.cores", func(c *Config) *int { return &c.Engine.Cores }),
	"engine.use_mmap":       boolKey("engine.use_mmap", func(c *Config) *bool { return &c.Engine.UseMMap }),
	"engine.use_mlock":      boolKey("engine.use_mlock", func(c *Config) *bool { return &c.Engine.UseMLock }),
	"engine.offload_kqv":    boolKey("engine.offload_kqv", func(c *Config) *bool { return &c.Engine.OffloadKQV }),
	"engine.context_window": intKey("engine.context_window", func(c *Config) *int { return &c.Engine.ContextWindow }),
	"engine.temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Engine.Temperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for engine.temperature: %w", err)
			}
			c.Engine.Temperature = f
			return nil
		},
	},
	"retrieval.enabled":        boolKey("retrieval.enabled", func(c *Config) *bool { return &c.Retrieval.Enabled }),
	"retrieval.mode":           stringKey(func(c *Config) *string { return &c.Retrieval.Mode }),
	"retrieval.documents_dir":  stringKey(func(c *Config) *string { return &c.Retrieval.DocumentsDir }),
	"retrieval.require":        boolKey("retrieval.require", func(c *Config) *bool { return &c.Retrieval.Require }),
	"vector_store.provider":    stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":      stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.sqlite_path": stringKey(func(c *Config) *string { return &c.VectorStore.SQLitePath }),
	"embedding.provider":       stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":         stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":          stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"api.listen":      stringKey(func(c *Config) *string { return &c.API.Listen }),
	"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = splitList(v)
			return nil
		},
	},
	"events.topic": stringKey(func(c *Config) *string { return &c.Events.Topic }),
}

// splitList parses a comma separated list, dropping empty items.
func splitList(v string) []string {
	var out []string
	for item := range strings.SplitSeq(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
