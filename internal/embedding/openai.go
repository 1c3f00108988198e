package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const openAIBatchSize = 256

// OpenAIEmbedder calls the OpenAI embeddings endpoint with backoff retries.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	maxAttempts uint
	logger      *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets the logger used for retry warnings.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// WithClient replaces the OpenAI client, e.g. one pointed at a test server.
func WithClient(c *openai.Client) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.client = c }
}

// NewOpenAIEmbedder creates an embedder for model. dimensions is requested from
// the API when positive.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, maxRetries uint, opts ...OpenAIOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", models.ErrEmbeddingUnavailable)
	}
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	if maxRetries == 0 {
		maxRetries = 3
	}
	e := &OpenAIEmbedder{
		client:      openai.NewClient(apiKey),
		model:       model,
		dimensions:  dimensions,
		maxAttempts: maxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	return e, nil
}

// Embed returns the L2-normalized embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in order, in API batches of up to 256 inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := start + openAIBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}
	var resp openai.EmbeddingResponse
	err := retry.Do(
		func() error {
			var err error
			resp, err = e.client.CreateEmbeddings(ctx, req)
			return err
		},
		retry.Attempts(e.maxAttempts),
		retry.Context(ctx),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying OpenAI embeddings", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %v", models.ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, errors.New("openai embeddings: response size does not match input")
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := append([]float32(nil), d.Embedding...)
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return out, nil
}

// Dimensions returns the configured dimension, or 1536 for the default model.
func (e *OpenAIEmbedder) Dimensions() int {
	if e.dimensions > 0 {
		return e.dimensions
	}
	return 1536
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
