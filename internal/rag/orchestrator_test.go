package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/playground/internal/collection"
	"github.com/hyperjump/playground/internal/embedding"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/provider"
)

type captureGenerator struct {
	got models.GenerationRequest
}

func (g *captureGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	g.got = req
	return models.GenerationResult{Text: "forty-two", ModelName: req.ModelName, Provider: string(req.Provider), FinishReason: "stop"}
}

func seed(t *testing.T, m *collection.Manager, embedder embedding.Embedder, name string, chunks ...string) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.CreateOrGet(ctx, name, models.CollectionMeta{}); err != nil {
		t.Fatal(err)
	}
	vecs := make([][]float32, len(chunks))
	metas := make([]models.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		if embedder != nil {
			v, err := embedder.Embed(ctx, c)
			if err != nil {
				t.Fatal(err)
			}
			vecs[i] = v
		}
		metas[i] = models.NewChunkMetadata("doc.txt", i, len(c))
	}
	unlock := m.Lock(name)
	defer unlock()
	if _, err := m.Add(ctx, name, chunks, vecs, metas); err != nil {
		t.Fatal(err)
	}
}

func request(collectionName, query string) models.RAGRequest {
	req := models.NewRAGRequest()
	req.CollectionName = collectionName
	req.Query = query
	return req
}

func TestQuery_lexical(t *testing.T) {
	m := collection.NewManager(collection.NewLexicalStore())
	seed(t, m, nil, "notes", "the answer is forty-two", "bananas are yellow")
	gen := &captureGenerator{}
	o := NewOrchestrator(m, nil, gen)

	resp, err := o.Query(context.Background(), request("notes", "what is the answer"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "forty-two" || resp.Query != "what is the answer" {
		t.Errorf("response: %+v", resp)
	}
	if len(resp.RetrievedDocuments) == 0 || resp.RetrievedDocuments[0].Text != "the answer is forty-two" {
		t.Errorf("retrieved: %+v", resp.RetrievedDocuments)
	}
	if gen.got.SystemPrompt != SystemPrompt || gen.got.TopP != TopP || gen.got.MaxTokens != models.DefaultRAGMaxTokens {
		t.Errorf("generation request: %+v", gen.got)
	}
	if !strings.HasPrefix(gen.got.Prompt, "Context: the answer is forty-two") ||
		!strings.HasSuffix(gen.got.Prompt, "\n\nQ: what is the answer\nA:") {
		t.Errorf("prompt: %q", gen.got.Prompt)
	}
}

func TestQuery_vectorBackend(t *testing.T) {
	store, err := collection.NewFlatStore(t.TempDir(), collection.WithIndexType("memory"))
	if err != nil {
		t.Fatal(err)
	}
	m := collection.NewManager(store)
	emb := embedding.NewMockEmbedder(16)
	seed(t, m, emb, "vecs", "alpha", "beta", "gamma")

	o := NewOrchestrator(m, emb, &captureGenerator{})
	req := request("vecs", "beta")
	req.TopK = 2
	resp, err := o.Query(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.RetrievedDocuments) != 2 || resp.RetrievedDocuments[0].Text != "beta" {
		t.Errorf("retrieved: %+v", resp.RetrievedDocuments)
	}

	noEmbedder := NewOrchestrator(m, nil, &captureGenerator{})
	if _, err := noEmbedder.Query(context.Background(), req); !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Errorf("without embedder: %v", err)
	}
}

func TestQuery_errors(t *testing.T) {
	m := collection.NewManager(collection.NewLexicalStore())
	if _, err := m.CreateOrGet(context.Background(), "empty", models.CollectionMeta{}); err != nil {
		t.Fatal(err)
	}
	o := NewOrchestrator(m, nil, &captureGenerator{})
	ctx := context.Background()

	if _, err := o.Query(ctx, request("empty", "q")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("empty collection: %v", err)
	}
	if _, err := o.Query(ctx, request("missing", "q")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing collection: %v", err)
	}
	if _, err := o.Query(ctx, request("empty", "")); !errors.Is(err, models.ErrValidation) {
		t.Errorf("empty query: %v", err)
	}
	bad := request("empty", "q")
	bad.TopK = 21
	if _, err := o.Query(ctx, bad); !errors.Is(err, models.ErrValidation) {
		t.Errorf("top_k 21: %v", err)
	}

	none := NewOrchestrator(collection.NewManager(nil), nil, &captureGenerator{})
	if _, err := none.Query(ctx, request("docs", "q")); !errors.Is(err, models.ErrNoBackendAvailable) {
		t.Errorf("no backend: %v", err)
	}
}

func TestQuery_providerFailureIsAnswered(t *testing.T) {
	m := collection.NewManager(collection.NewLexicalStore())
	seed(t, m, nil, "notes", "some text")
	gate := func(string) error { return errors.New("model not downloaded") }
	svc := provider.NewService(provider.NewRegistry(provider.NewHuggingFace("m", nil, gate)))
	o := NewOrchestrator(m, nil, svc)

	resp, err := o.Query(context.Background(), request("notes", "text"))
	if err != nil {
		t.Fatalf("generation failure must not fail the query: %v", err)
	}
	if !strings.HasPrefix(resp.Answer, "Sorry, I encountered an error") || resp.ModelResponse.FinishReason != "error" {
		t.Errorf("response: %+v", resp)
	}
}

func TestAssembleContext(t *testing.T) {
	docs := func(texts ...string) []*models.RetrievedDocument {
		out := make([]*models.RetrievedDocument, len(texts))
		for i, s := range texts {
			out[i] = &models.RetrievedDocument{Text: s}
		}
		return out
	}
	tests := []struct {
		name   string
		docs   []*models.RetrievedDocument
		budget int
		want   string
	}{
		{"empty", nil, 100, ""},
		{"fits", docs("abc", "def"), 100, "abc\n\ndef"},
		{"exact", docs("abc", "def"), 8, "abc\n\ndef"},
		{"truncates overflow", docs("abc", "defghij"), 8, "abc\n\ndef..."},
		{"stops after truncation", docs("abcdef", "xyz"), 4, "abcd..."},
		{"separator exhausts budget", docs("abcd", "xyz"), 5, "abcd"},
		{"no limit", docs("a", "b"), 0, "a\n\nb"},
		{"counts runes", docs("héllo"), 3, "hél..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssembleContext(tt.docs, tt.budget); got != tt.want {
				t.Errorf("AssembleContext = %q, want %q", got, tt.want)
			}
		})
	}
}

type cancellingGenerator struct {
	cancel context.CancelFunc
}

func (g cancellingGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	g.cancel()
	return models.GenerationResult{Text: "too late", FinishReason: "stop"}
}

func TestQuery_stages(t *testing.T) {
	m := collection.NewManager(collection.NewLexicalStore())
	seed(t, m, nil, "notes", "the answer is forty-two")

	tests := []struct {
		name      string
		collName  string
		cancel    bool
		wantStage Stage
		wantErr   error
	}{
		{"answered", "notes", false, StageRespond, nil},
		{"missing collection", "missing", false, StageStart, models.ErrNotFound},
		{"cancelled during generation", "notes", true, StageGenerate, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			var gen Generator = &captureGenerator{}
			if tt.cancel {
				gen = cancellingGenerator{cancel: cancel}
			}
			o := NewOrchestrator(m, nil, gen)
			_, stage, err := o.query(ctx, request(tt.collName, "what is the answer"))
			if stage != tt.wantStage {
				t.Errorf("stage = %q, want %q", stage, tt.wantStage)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
