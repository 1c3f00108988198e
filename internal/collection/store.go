// Package collection stores named collections of chunks and their vectors and
// answers top-k similarity queries over them. Three interchangeable backends
// exist: a SQLite document store, a flat vector index and a lexical fallback.
package collection

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/hyperjump/playground/internal/models"
)

// Backend kinds, in probe order.
const (
	KindDocument = "document"
	KindFlat     = "flat"
	KindLexical  = "lexical"
)

// Store is the contract every collection backend satisfies identically.
type Store interface {
	// Kind names the backend.
	Kind() string
	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error
	// CreateOrGet returns the named collection, creating it empty with meta
	// if it does not exist. Existing collections are returned unchanged.
	CreateOrGet(ctx context.Context, name string, meta models.CollectionMeta) (*models.Collection, error)
	// Add appends chunks with their vectors and metadata and returns the
	// collection size afterwards.
	Add(ctx context.Context, name string, chunks []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error)
	// Query returns at most min(topK, size) chunks ranked by descending similarity.
	Query(ctx context.Context, name string, vector []float32, text string, topK int) ([]*models.RetrievedDocument, error)
	// Delete removes the collection and reports whether it existed.
	Delete(ctx context.Context, name string) (bool, error)
	// Get returns the collection with every chunk in append order.
	Get(ctx context.Context, name string) (*models.Collection, error)
	// List returns every collection ordered by name.
	List(ctx context.Context) ([]*models.Collection, error)
	// UpdateMetadata applies patch to the collection's descriptive fields.
	UpdateMetadata(ctx context.Context, name string, patch models.CollectionMetaPatch) (*models.Collection, error)
	// Count returns the number of chunks.
	Count(ctx context.Context, name string) (int, error)
	Close() error
}

func checkArity(chunks []string, vectors [][]float32, metas []models.ChunkMetadata) error {
	if len(chunks) != len(vectors) || len(chunks) != len(metas) {
		return models.ErrArityMismatch
	}
	return nil
}

func newIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.New().String()
	}
	return ids
}

// rank turns per-chunk scores into at most topK results, best first. Equal
// scores keep chunk order.
func rank(c *models.Collection, scores []float64, topK int) []*models.RetrievedDocument {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	return results(c, order, scores, topK)
}

func results(c *models.Collection, order []int, scores []float64, topK int) []*models.RetrievedDocument {
	if topK > len(order) {
		topK = len(order)
	}
	if topK < 0 {
		topK = 0
	}
	out := make([]*models.RetrievedDocument, topK)
	for r := 0; r < topK; r++ {
		i := order[r]
		out[r] = &models.RetrievedDocument{
			Text:            c.Chunks[i],
			Metadata:        c.Metadatas[i],
			SimilarityScore: scores[i],
			Rank:            r + 1,
		}
	}
	return out
}

func cloneCollection(c *models.Collection) *models.Collection {
	out := *c
	out.Meta.Tags = append([]string(nil), c.Meta.Tags...)
	out.IDs = append([]string(nil), c.IDs...)
	out.Chunks = append([]string(nil), c.Chunks...)
	out.Metadatas = append([]models.ChunkMetadata(nil), c.Metadatas...)
	if c.Vectors != nil {
		out.Vectors = append([][]float32(nil), c.Vectors...)
	}
	return &out
}
