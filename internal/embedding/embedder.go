// Package embedding turns chunk and query text into vectors.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Embedder kinds accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Options configures New.
type Options struct {
	Provider    string
	ModelPath   string
	Dimensions  int
	MaxTokens   int
	CacheSize   int
	OpenAIModel string
	OpenAIKey   string
	MaxRetries  uint
}

// New builds the embedder selected by opts.Provider and wraps it in an LRU
// cache when opts.CacheSize is positive. A failed ONNX load falls back to the
// mock embedder with a warning so the server still starts.
func New(opts Options, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	var (
		inner Embedder
		err   error
	)
	switch opts.Provider {
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(opts.OpenAIKey, opts.OpenAIModel, opts.Dimensions, opts.MaxRetries, WithLogger(logger))
		if err != nil {
			return nil, err
		}
	case ProviderMock:
		inner = NewMockEmbedder(opts.Dimensions)
	case ProviderONNX, "":
		inner, err = NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
			inner = NewMockEmbedder(opts.Dimensions)
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
	if opts.CacheSize > 0 {
		return NewCachedEmbedder(inner, opts.CacheSize), nil
	}
	return inner, nil
}

// embedEach calls embed for every text in order, stopping at the first error.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
