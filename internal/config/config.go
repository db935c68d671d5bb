package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Type    string         `yaml:"type"` // jsonfile, chromem or qdrant
	Path    string         `yaml:"path"`
	Chromem *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant  *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// ChromemConfig configures the chromem-go backend.
type ChromemConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant backend.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"` // openai or local
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Local  *LocalEmbedderConfig  `yaml:"local,omitempty"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible
// embeddings client.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// LocalEmbedderConfig configures the offline hashed embedder.
type LocalEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// ChatConfig configures the chat completion collaborator. Temperature is a
// pointer so an explicit 0 is distinguishable from unset.
type ChatConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
}

// ChunkerConfig configures how texts are split into chunks. Overlap is a
// pointer because 0 is a valid setting, not an omission.
type ChunkerConfig struct {
	ChunkSize int  `yaml:"chunk_size"`
	Overlap   *int `yaml:"overlap"`
}

// RetrievalConfig configures the pipeline's data layout and search depth.
type RetrievalConfig struct {
	DataDir    string `yaml:"data_dir"`
	SampleFile string `yaml:"sample_file"`
	TopK       int    `yaml:"top_k"`
}

// SessionConfig configures chat session retention.
type SessionConfig struct {
	TTLMins  int `yaml:"ttl_mins"`
	MaxTurns int `yaml:"max_turns"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Store     StoreConfig     `yaml:"store"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chat      ChatConfig      `yaml:"chat"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Session   SessionConfig   `yaml:"session"`
}

// overrides are environment knobs applied on top of the YAML file.
type overrides struct {
	IndexPath  string `env:"RAG_INDEX_PATH"`
	DataDir    string `env:"RAG_DATA_DIR"`
	StoreType  string `env:"RAG_STORE"`
	EmbedModel string `env:"EMBED_MODEL"`
	ChatModel  string `env:"CHAT_MODEL"`
}

// Load reads a config from path. A missing file yields the defaults.
// Environment overrides are applied last.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(&cfg)
	if err := applyOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Store.Type == "" {
		cfg.Store.Type = "jsonfile"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join("data", "index.json")
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 64
		}
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o-mini"
	}
	if cfg.Chat.Temperature == nil {
		t := 0.2
		cfg.Chat.Temperature = &t
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 800
	}
	if cfg.Chunker.Overlap == nil {
		o := 120
		cfg.Chunker.Overlap = &o
	}
	if cfg.Retrieval.DataDir == "" {
		cfg.Retrieval.DataDir = "data"
	}
	if cfg.Retrieval.SampleFile == "" {
		cfg.Retrieval.SampleFile = "sample_imaging.jsonl"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.Session.TTLMins == 0 {
		cfg.Session.TTLMins = 60
	}
	if cfg.Session.MaxTurns == 0 {
		cfg.Session.MaxTurns = 20
	}
}

func applyOverrides(cfg *AppConfig) error {
	var ov overrides
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse env overrides: %w", err)
	}
	if ov.IndexPath != "" {
		cfg.Store.Path = ov.IndexPath
	}
	if ov.DataDir != "" {
		cfg.Retrieval.DataDir = ov.DataDir
	}
	if ov.StoreType != "" {
		cfg.Store.Type = ov.StoreType
	}
	if ov.EmbedModel != "" && cfg.Embedder.OpenAI != nil {
		cfg.Embedder.OpenAI.Model = ov.EmbedModel
	}
	if ov.ChatModel != "" {
		cfg.Chat.Model = ov.ChatModel
	}
	return nil
}
