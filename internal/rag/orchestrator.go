// Package rag answers questions over a collection: embed the query, retrieve
// the nearest chunks, assemble a bounded context and ask a model.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/playground/internal/collection"
	"github.com/hyperjump/playground/internal/embedding"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// Defaults for the generation step.
const (
	DefaultContextBudget = 1200
	SystemPrompt         = "Answer using only the context. Be brief."
	TopP                 = 0.9
)

// Stage names a step of a query. Failures are labelled with the stage they
// happened in; a completed query ends in StageRespond.
type Stage string

const (
	StageStart           Stage = "start"
	StageEmbedQuery      Stage = "embed_query"
	StageRetrieve        Stage = "retrieve"
	StageAssembleContext Stage = "assemble_context"
	StageGenerate        Stage = "generate"
	StageRespond         Stage = "respond"
)

// Generator runs one generation and absorbs provider failures into the result.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult
}

// Orchestrator runs RAG queries.
type Orchestrator struct {
	collections *collection.Manager
	embedder    embedding.Embedder
	generator   Generator
	budget      int
	logger      *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithContextBudget sets the maximum context length in characters.
func WithContextBudget(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.budget = n
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator returns an orchestrator. embedder may be nil when the
// active backend ranks lexically.
func NewOrchestrator(collections *collection.Manager, embedder embedding.Embedder, generator Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		collections: collections,
		embedder:    embedder,
		generator:   generator,
		budget:      DefaultContextBudget,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = utils.OrNop(o.logger)
	return o
}

// Query answers req from its collection. Validation, missing or empty
// collections, backend and embedding failures are returned as errors;
// generation failures come back inside the response.
func (o *Orchestrator) Query(ctx context.Context, req models.RAGRequest) (*models.RAGResponse, error) {
	resp, stage, err := o.query(ctx, req)
	if err != nil {
		o.logger.Debug("rag query failed",
			zap.String("collection", req.CollectionName),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return nil, err
	}
	o.logger.Debug("rag query answered",
		zap.String("collection", req.CollectionName),
		zap.String("stage", string(stage)),
		zap.Int("retrieved", len(resp.RetrievedDocuments)))
	return resp, nil
}

func (o *Orchestrator) query(ctx context.Context, req models.RAGRequest) (*models.RAGResponse, Stage, error) {
	if err := models.Validate(req); err != nil {
		return nil, StageStart, err
	}
	if err := o.collections.Available(); err != nil {
		return nil, StageStart, err
	}
	name := models.SanitizeCollectionName(req.CollectionName)
	n, err := o.collections.Count(ctx, name)
	if err != nil {
		return nil, StageStart, err
	}
	if n == 0 {
		return nil, StageStart, models.NewNotFoundError("documents in collection " + name)
	}

	var vec []float32
	if o.collections.NeedsVectors() {
		if o.embedder == nil {
			return nil, StageEmbedQuery, models.ErrEmbeddingUnavailable
		}
		vec, err = o.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, StageEmbedQuery, fmt.Errorf("embed query: %w", err)
		}
	}

	docs, err := o.collections.Query(ctx, name, vec, req.Query, req.TopK)
	if err != nil {
		return nil, StageRetrieve, fmt.Errorf("retrieve: %w", err)
	}

	contextText := AssembleContext(docs, o.budget)
	if err := ctx.Err(); err != nil {
		return nil, StageAssembleContext, err
	}

	result := o.generator.Generate(ctx, models.GenerationRequest{
		Prompt:       BuildPrompt(contextText, req.Query),
		SystemPrompt: SystemPrompt,
		ModelName:    req.ModelName,
		Provider:     req.Provider,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		TopP:         TopP,
	})
	if err := ctx.Err(); err != nil {
		return nil, StageGenerate, err
	}

	retrieved := make([]models.RetrievedDocument, len(docs))
	for i, d := range docs {
		retrieved[i] = *d
	}
	return &models.RAGResponse{
		Query:              req.Query,
		Answer:             result.Text,
		RetrievedDocuments: retrieved,
		ModelResponse:      result,
	}, StageRespond, nil
}

// AssembleContext joins the document texts with blank lines, stopping at
// budget characters. The chunk that crosses the budget is cut to the
// remaining space, marked with "...", and is the last one included. A
// non-positive budget means no limit.
func AssembleContext(docs []*models.RetrievedDocument, budget int) string {
	var b strings.Builder
	used := 0
	for i, d := range docs {
		sep := 0
		if i > 0 {
			sep = 2
		}
		if budget <= 0 {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(d.Text)
			continue
		}
		remaining := budget - used - sep
		if remaining <= 0 {
			break
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		n := utils.RuneLen(d.Text)
		if n <= remaining {
			b.WriteString(d.Text)
			used += sep + n
			continue
		}
		b.WriteString(utils.Truncate(d.Text, remaining))
		break
	}
	return b.String()
}

// BuildPrompt frames the question with its context.
func BuildPrompt(contextText, query string) string {
	return fmt.Sprintf("Context: %s\n\nQ: %s\nA:", contextText, query)
}
