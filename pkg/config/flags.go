package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --model
// on "g4l chat", "g4l complete" and "g4l bench").
type Flag struct {
	// Name is the long flag name (e.g. "model").
	Name string

	// Shorthand is the one-letter short flag (e.g. "m"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "engine.model").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBackend         = "backend"
	FlagTarget          = "target"
	FlagModelsDir       = "models-dir"
	FlagModel           = "model"
	FlagGPULayers       = "gpu-layers"
	FlagCores           = "cores"
	FlagUseMLock        = "mlock"
	FlagContextWindow   = "context-window"
	FlagRetrieval       = "retrieval"
	FlagRetrievalMode   = "mode"
	FlagDocumentsDir    = "docs"
	FlagRequireRetrieve = "require-retrieval"
	FlagVectorStoreProv = "vector-store-provider"
	FlagVectorStoreTgt  = "vector-store-target"
	FlagSQLite          = "sqlite"
	FlagEmbeddingProv   = "embedding-provider"
	FlagEmbeddingTgt    = "embedding-target"
	FlagEmbeddingModel  = "embedding-model"
	FlagEmbeddingDims   = "embedding-dimensions"
	FlagAPIListen       = "listen"
	FlagEventsProv      = "events-provider"
)

// Flags is the registry shared by every g4l command.
var Flags = FlagSet{
	FlagBackend:         {Name: "backend", ViperKey: "engine.backend", Description: "Inference backend (ollama, llamacpp)"},
	FlagTarget:          {Name: "target", Shorthand: "t", ViperKey: "engine.target", Description: "Inference server URL"},
	FlagModelsDir:       {Name: "models-dir", ViperKey: "engine.models_dir", Description: "Directory holding model files (llamacpp)"},
	FlagModel:           {Name: "model", Shorthand: "m", ViperKey: "engine.model", Description: "Model to run"},
	FlagGPULayers:       {Name: "gpu-layers", ViperKey: "engine.gpu_layers", Description: "Model layers to offload to the GPU (-1 for all)"},
	FlagCores:           {Name: "cores", ViperKey: "engine.cores", Description: "CPU threads used for generation (0 lets the backend decide)"},
	FlagUseMLock:        {Name: "mlock", ViperKey: "engine.use_mlock", Description: "Lock the model in memory"},
	FlagContextWindow:   {Name: "context-window", ViperKey: "engine.context_window", Description: "Context window size (n_ctx)"},
	FlagRetrieval:       {Name: "retrieval", Shorthand: "r", ViperKey: "retrieval.enabled", Description: "Augment prompts with passages from the document index"},
	FlagRetrievalMode:   {Name: "mode", ViperKey: "retrieval.mode", Description: "Retrieval aggressiveness (subtle, default, aggressive, very-aggressive)"},
	FlagDocumentsDir:    {Name: "docs", ViperKey: "retrieval.documents_dir", Description: "Directory of documents to index"},
	FlagRequireRetrieve: {Name: "require-retrieval", ViperKey: "retrieval.require", Description: "Fail completions when retrieval fails"},
	FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store (sqlite, chroma, qdrant, pgvector)"},
	FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store URL or connection string"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "vector_store.sqlite_path", Description: "Path to the sqlite-vec index (default: derived from the storage ID)"},
	FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider"},
	FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model"},
	FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventsProv:      {Name: "events-provider", ViperKey: "events.provider", Description: "Completion event publisher (nop, kafka)"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only the values from NewDefaultConfig.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

// Registry key groups shared by commands that open the same components.
var (
	EngineFlags = []string{
		FlagBackend, FlagTarget, FlagModelsDir, FlagModel,
		FlagGPULayers, FlagCores, FlagUseMLock, FlagContextWindow,
	}

	RetrievalFlags = []string{
		FlagRetrieval, FlagRetrievalMode, FlagDocumentsDir, FlagRequireRetrieve,
		FlagVectorStoreProv, FlagVectorStoreTgt, FlagSQLite,
		FlagEmbeddingProv, FlagEmbeddingTgt, FlagEmbeddingModel, FlagEmbeddingDims,
	}
)

// AddRegisteredFlags registers every flag in registryKeys, choosing the
// flag type from the key's default value. The values are read back through
// viper once BindRegisteredFlags has run, so the flag targets are discarded.
func AddRegisteredFlags(cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	d := defaults()
	for _, key := range registryKeys {
		def, ok := fs[key]
		if !ok || cmd.Flags().Lookup(def.Name) != nil {
			continue
		}

		switch d.Get(def.ViperKey).(type) {
		case bool:
			AddBoolFlag(cmd, fs, key, new(bool))
		case int:
			AddIntFlag(cmd, fs, key, new(int))
		case uint:
			AddUintFlag(cmd, fs, key, new(uint))
		default:
			AddStringFlag(cmd, fs, key, new(string))
		}
	}
}

// ForCommand resolves the effective configuration for cmd: it reads the
// config file selected by --config-dir, applies G4L_* environment
// overrides, then any of registryKeys set on the command line.
func ForCommand(cmd *cobra.Command, fs FlagSet, registryKeys []string) (*Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}
	BindRegisteredFlags(v, cmd, fs, registryKeys)

	return FromViper(v), nil
}
