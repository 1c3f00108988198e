package collection

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/playground/internal/models"
)

// FallbackScore is reported for every chunk returned when no query term matches.
const FallbackScore = 0.01

// LexicalStore keeps chunks in memory and scores them by the fraction of
// query terms they contain. Vectors are accepted for arity and dropped.
type LexicalStore struct {
	mu   sync.RWMutex
	cols map[string]*models.Collection
}

// NewLexicalStore returns an empty lexical backend.
func NewLexicalStore() *LexicalStore {
	return &LexicalStore{cols: make(map[string]*models.Collection)}
}

// LexicalScore is the fraction of whitespace-separated, lowercased query
// terms that occur as substrings of the lowercased text.
func LexicalScore(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func (s *LexicalStore) get(name string) (*models.Collection, error) {
	c, ok := s.cols[name]
	if !ok {
		return nil, models.NewNotFoundError("collection " + name)
	}
	return c, nil
}

func (s *LexicalStore) Kind() string { return KindLexical }

func (s *LexicalStore) Ping(ctx context.Context) error { return nil }

func (s *LexicalStore) CreateOrGet(ctx context.Context, name string, meta models.CollectionMeta) (*models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cols[name]; ok {
		return cloneCollection(c), nil
	}
	now := time.Now().UTC()
	meta.Tags = append([]string{}, meta.Tags...)
	c := &models.Collection{Name: name, Meta: meta, CreatedAt: now, LastUpdated: now}
	s.cols[name] = c
	return cloneCollection(c), nil
}

func (s *LexicalStore) Add(ctx context.Context, name string, chunks []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error) {
	if err := checkArity(chunks, vectors, metas); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return 0, err
	}
	c.IDs = append(c.IDs, newIDs(len(chunks))...)
	c.Chunks = append(c.Chunks, chunks...)
	c.Metadatas = append(c.Metadatas, metas...)
	c.LastUpdated = time.Now().UTC()
	return c.Size(), nil
}

// Query ranks chunks by LexicalScore. When no chunk matches any term the
// first topK chunks are returned in insertion order with FallbackScore.
func (s *LexicalStore) Query(ctx context.Context, name string, vec []float32, text string, topK int) ([]*models.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(strings.ToLower(text))
	scores := make([]float64, c.Size())
	var matched []int
	for i, chunk := range c.Chunks {
		if scores[i] = LexicalScore(terms, chunk); scores[i] > 0 {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		order := make([]int, c.Size())
		for i := range order {
			order[i] = i
			scores[i] = FallbackScore
		}
		return results(c, order, scores, topK), nil
	}
	sort.SliceStable(matched, func(a, b int) bool { return scores[matched[a]] > scores[matched[b]] })
	return results(c, matched, scores, topK), nil
}

func (s *LexicalStore) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cols[name]; !ok {
		return false, nil
	}
	delete(s.cols, name)
	return true, nil
}

func (s *LexicalStore) Get(ctx context.Context, name string) (*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return cloneCollection(c), nil
}

func (s *LexicalStore) List(ctx context.Context) ([]*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Collection, 0, len(s.cols))
	for _, c := range s.cols {
		out = append(out, cloneCollection(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *LexicalStore) UpdateMetadata(ctx context.Context, name string, patch models.CollectionMetaPatch) (*models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	c.Meta = patch.Apply(c.Meta)
	c.LastUpdated = time.Now().UTC()
	return cloneCollection(c), nil
}

func (s *LexicalStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return c.Size(), nil
}

func (s *LexicalStore) Close() error { return nil }
