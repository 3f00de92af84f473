package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds the HTTP/WebSocket listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DocumentsConfig points at the directory of source documents.
type DocumentsConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChunkLen int `yaml:"max_chunk_len"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// IndexConfig selects the distance metric and the persistence backend.
type IndexConfig struct {
	Metric string `yaml:"metric"` // "l2" or "cosine"
	Store  string `yaml:"store"`  // "file" or "sqlite"
	Path   string `yaml:"path"`
}

// RetrievalConfig holds the default retrieval parameters.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	Threshold     float64 `yaml:"threshold"`
	ContextWindow int     `yaml:"context_window"`
}

// ChatConfig configures the chat-completions provider.
type ChatConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Documents DocumentsConfig `yaml:"documents"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
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

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server:    ServerConfig{Addr: ":8080"},
		Documents: DocumentsConfig{Dir: "data"},
		Chunker:   ChunkerConfig{MaxChunkLen: 800},
		Embedder:  EmbedderConfig{Type: "tfidf"},
		Index:     IndexConfig{Metric: "l2", Store: "file", Path: "vectorstore/index.gob"},
		Retrieval: RetrievalConfig{TopK: 3, Threshold: 0.3, ContextWindow: 1},
		Chat: ChatConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			Model:       "gpt-4o",
			TimeoutSecs: 60,
		},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Documents.Dir == "" {
		cfg.Documents.Dir = "data"
	}
	if cfg.Chunker.MaxChunkLen == 0 {
		cfg.Chunker.MaxChunkLen = 800
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "l2"
	}
	if cfg.Index.Store == "" {
		cfg.Index.Store = "file"
	}
	if cfg.Index.Path == "" {
		if cfg.Index.Store == "sqlite" {
			cfg.Index.Path = "vectorstore/index.db"
		} else {
			cfg.Index.Path = "vectorstore/index.gob"
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = 0.3
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Chat.BaseURL == "" {
		cfg.Chat.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Chat.APIKeyEnv == "" {
		cfg.Chat.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4o"
	}
	if cfg.Chat.TimeoutSecs == 0 {
		cfg.Chat.TimeoutSecs = 60
	}
}
