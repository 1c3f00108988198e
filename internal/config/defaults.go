package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/playground.db"
	}
	if cfg.Storage.FlatIndexDir == "" {
		cfg.Storage.FlatIndexDir = "./data/flat"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "./data/catalog.bleve"
	}
	if cfg.Storage.ModelsDir == "" {
		cfg.Storage.ModelsDir = "./models"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OpenAIModel == "" {
		cfg.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if cfg.RAG.Backend == "" {
		cfg.RAG.Backend = "auto"
	}
	if cfg.RAG.ContextBudget == 0 {
		cfg.RAG.ContextBudget = 1200
	}
	if cfg.RAG.DefaultTopK == 0 {
		cfg.RAG.DefaultTopK = 5
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.MaxUploadBytes == 0 {
		cfg.RAG.MaxUploadBytes = 50 << 20
	}
	if cfg.Providers.DefaultProvider == "" {
		cfg.Providers.DefaultProvider = "huggingface"
	}
	if cfg.Providers.DefaultModel == "" {
		cfg.Providers.DefaultModel = "microsoft/DialoGPT-small"
	}
	if cfg.Providers.OllamaURL == "" {
		cfg.Providers.OllamaURL = "http://localhost:11434"
	}
	if cfg.Providers.GoogleURL == "" {
		cfg.Providers.GoogleURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Providers.Timeout == 0 {
		cfg.Providers.Timeout = 120 * time.Second
	}
	if cfg.Providers.MaxRetries == 0 {
		cfg.Providers.MaxRetries = 3
	}
	if cfg.Configs.Store == "" {
		cfg.Configs.Store = "sqlite"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf"}
	}
	if cfg.Watch.Collection == "" {
		cfg.Watch.Collection = "inbox"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
