package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	ChatModel   string  `yaml:"chat_model"`
	EmbedModel  string  `yaml:"embed_model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// StorageConfig selects the vector store backend. Type is "sqlite"
// (default, local file) or "qdrant" (external service).
type StorageConfig struct {
	Type       string `yaml:"type"`
	DataDir    string `yaml:"data_dir"`
	QdrantAddr string `yaml:"qdrant_addr"`
	Collection string `yaml:"collection"`
}

type RetrievalConfig struct {
	TopK         int     `yaml:"top_k"`
	MinScore     float64 `yaml:"min_score"`
	StrongScore  float64 `yaml:"strong_score"`
	HistoryTurns int     `yaml:"history_turns"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8000,
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			ChatModel:   "llama3.2",
			EmbedModel:  "nomic-embed-text",
			Temperature: 0.2,
			MaxTokens:   1000,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			DataDir:    defaultDataDir(),
			QdrantAddr: "localhost:6334",
			Collection: "quill_chunks",
		},
		Retrieval: RetrievalConfig{
			TopK:         6,
			MinScore:     0.25,
			StrongScore:  0.60,
			HistoryTurns: 6,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quill"
	}
	return filepath.Join(home, ".quill")
}

// Load reads configuration from the YAML file at path (missing file means
// defaults), then applies QUILL_* environment variable overrides. An empty
// path checks ./quill.yaml.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path == "" {
		path = "quill.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr := func(env string, dst *string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) {
		raw := os.Getenv(env)
		if raw == "" {
			return
		}
		if i, err := strconv.Atoi(raw); err == nil {
			*dst = i
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", env, raw, err)
		}
	}
	setFloat := func(env string, dst *float64) {
		raw := os.Getenv(env)
		if raw == "" {
			return
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			*dst = f
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", env, raw, err)
		}
	}

	setInt("QUILL_PORT", &cfg.Server.Port)
	setStr("QUILL_OLLAMA_URL", &cfg.Ollama.BaseURL)
	setStr("QUILL_CHAT_MODEL", &cfg.Ollama.ChatModel)
	setStr("QUILL_EMBED_MODEL", &cfg.Ollama.EmbedModel)
	setFloat("QUILL_TEMPERATURE", &cfg.Ollama.Temperature)
	setInt("QUILL_MAX_TOKENS", &cfg.Ollama.MaxTokens)
	setStr("QUILL_STORE", &cfg.Storage.Type)
	setStr("QUILL_DATA_DIR", &cfg.Storage.DataDir)
	setStr("QUILL_QDRANT_ADDR", &cfg.Storage.QdrantAddr)
	setStr("QUILL_COLLECTION", &cfg.Storage.Collection)
	setInt("QUILL_TOP_K", &cfg.Retrieval.TopK)
	setFloat("QUILL_MIN_SCORE", &cfg.Retrieval.MinScore)
	setFloat("QUILL_STRONG_SCORE", &cfg.Retrieval.StrongScore)
	setInt("QUILL_HISTORY_TURNS", &cfg.Retrieval.HistoryTurns)
	setInt("QUILL_CHUNK_SIZE", &cfg.Chunking.Size)
	setInt("QUILL_CHUNK_OVERLAP", &cfg.Chunking.Overlap)
	setStr("QUILL_LOG_LEVEL", &cfg.Log.Level)
}

func validate(cfg Config) error {
	if cfg.Storage.Type != "sqlite" && cfg.Storage.Type != "qdrant" {
		return fmt.Errorf("unknown storage type %q (want sqlite or qdrant)", cfg.Storage.Type)
	}
	if cfg.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.Chunking.Size)
	}
	if cfg.Chunking.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", cfg.Retrieval.TopK)
	}
	return nil
}
