package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/playground/internal/models"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	// a becomes most recent, so c evicts b.
	c.Get("a")
	c.Set("c", []float32{6})
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

type countingEmbedder struct {
	*MockEmbedder
	batches int
	texts   int
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches++
	c.texts += len(texts)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_onlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.EmbedBatch(ctx, []string{"x", "y"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.EmbedBatch(ctx, []string{"y", "z", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.texts != 3 {
		t.Errorf("inner embedded %d texts, want 3", inner.texts)
	}
	if second[0][0] != first[1][0] || second[2][0] != first[0][0] {
		t.Error("cached vectors should be returned in request order")
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

func TestMockEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "hello")
	b, _ := e.Embed(ctx, "hello")
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text should embed identically")
		}
		norm += float64(a[i] * a[i])
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("norm = %f, want 1", norm)
	}
}

func TestNew_selectsProvider(t *testing.T) {
	e, err := New(Options{Provider: ProviderMock, Dimensions: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimensions() != 4 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
	if _, ok := e.(*MockEmbedder); !ok {
		t.Errorf("expected uncached mock, got %T", e)
	}

	e, err = New(Options{Provider: ProviderMock, Dimensions: 4, CacheSize: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*CachedEmbedder); !ok {
		t.Errorf("expected cached embedder, got %T", e)
	}

	if _, err := New(Options{Provider: "bogus"}, nil); err == nil {
		t.Error("unknown provider should fail")
	}
	if _, err := New(Options{Provider: ProviderOpenAI}, nil); !errors.Is(err, models.ErrEmbeddingUnavailable) {
		t.Errorf("openai without key: got %v", err)
	}
}

func TestNew_onnxFallsBackToMock(t *testing.T) {
	e, err := New(Options{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx", Dimensions: 8}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.(*MockEmbedder); !ok {
		t.Errorf("expected mock fallback, got %T", e)
	}
}
