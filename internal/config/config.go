// Package config provides configuration loading and structs for the playground server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	RAG       RAGConfig       `yaml:"rag"`
	Providers ProvidersConfig `yaml:"providers"`
	Configs   ConfigsConfig   `yaml:"configs"`
	Watch     WatchConfig     `yaml:"watch"`

	// Secrets are read from the environment and .env, never from YAML.
	Secrets Secrets `yaml:"-"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the database, indices and downloaded models.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	FlatIndexDir     string `yaml:"flat_index_dir"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	ModelsDir        string `yaml:"models_dir"`
}

// EmbeddingConfig selects and configures the embedder.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // onnx, openai or mock
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	OpenAIModel string `yaml:"openai_model"`
}

// RAGConfig holds collection backend and retrieval settings.
type RAGConfig struct {
	Backend        string `yaml:"backend"` // auto, document, flat or lexical
	ContextBudget  int    `yaml:"context_budget"`
	DefaultTopK    int    `yaml:"default_top_k"`
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// ProvidersConfig holds generation provider endpoints and client behavior.
type ProvidersConfig struct {
	DefaultProvider string        `yaml:"default_provider"`
	DefaultModel    string        `yaml:"default_model"`
	OllamaURL       string        `yaml:"ollama_url"`
	VLLMURL         string        `yaml:"vllm_url"`
	GoogleURL       string        `yaml:"google_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

// ConfigsConfig selects the prompt-config and metrics store.
type ConfigsConfig struct {
	Store string `yaml:"store"` // sqlite or memory
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Collection  string   `yaml:"collection"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads and parses the config file at path, expands paths, applies
// defaults and reads secrets. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	cfg.Secrets = LoadSecrets(filepath.Join(filepath.Dir(path), ".env"))

	return &cfg, nil
}

// Default returns a config with every default applied and paths resolved
// against dir. Used when no config file exists.
func Default(dir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	expandPaths(&cfg, dir)
	cfg.Secrets = LoadSecrets(filepath.Join(dir, ".env"))
	return &cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.FlatIndexDir = expandPath(cfg.Storage.FlatIndexDir, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.ModelsDir = expandPath(cfg.Storage.ModelsDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
