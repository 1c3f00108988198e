package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/vector"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

const (
	flatIndexExt  = ".idx"
	flatRecordExt = ".json"
)

// FlatStore keeps one flat inner-product index per collection, with chunk
// text and metadata held in memory. Each collection is persisted under dir as
// <name>.idx (the index) and <name>.json (chunks, metadata and vectors).
type FlatStore struct {
	dir       string
	indexType string
	logger    *zap.Logger

	mu   sync.RWMutex
	cols map[string]*flatCollection
}

type flatCollection struct {
	data  *models.Collection
	index vector.VectorIndex
	pos   map[string]int
}

type flatRecord struct {
	Collection *models.Collection `json:"collection"`
	Vectors    [][]float32        `json:"vectors"`
}

// FlatOption configures a FlatStore.
type FlatOption func(*FlatStore)

// WithFlatLogger sets the logger used for load warnings.
func WithFlatLogger(l *zap.Logger) FlatOption {
	return func(s *FlatStore) { s.logger = l }
}

// WithIndexType selects the vector index implementation (memory, faiss, auto).
func WithIndexType(t string) FlatOption {
	return func(s *FlatStore) { s.indexType = t }
}

// NewFlatStore opens the flat backend rooted at dir and loads every persisted collection.
func NewFlatStore(dir string, opts ...FlatOption) (*FlatStore, error) {
	s := &FlatStore{
		dir:       dir,
		indexType: string(vector.IndexTypeAuto),
		cols:      make(map[string]*flatCollection),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create flat index dir: %w", err)
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FlatStore) indexPath(name string) string  { return filepath.Join(s.dir, name+flatIndexExt) }
func (s *FlatStore) recordPath(name string) string { return filepath.Join(s.dir, name+flatRecordExt) }

func (s *FlatStore) loadAll() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*"+flatRecordExt))
	if err != nil {
		return err
	}
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		var rec flatRecord
		if err := json.Unmarshal(b, &rec); err != nil || rec.Collection == nil {
			s.logger.Warn("skipping unreadable flat collection", zap.String("path", p), zap.Error(err))
			continue
		}
		c := rec.Collection
		c.Vectors = rec.Vectors
		if !c.Aligned() || len(c.Vectors) != c.Size() {
			s.logger.Warn("skipping misaligned flat collection", zap.String("name", c.Name))
			continue
		}
		fc := &flatCollection{data: c, pos: positions(c.IDs)}
		if c.Size() > 0 {
			if fc.index, err = s.openIndex(c); err != nil {
				return err
			}
		}
		s.cols[c.Name] = fc
	}
	return nil
}

// openIndex loads the persisted index for c, rebuilding it from the stored
// vectors when the file is missing or stale.
func (s *FlatStore) openIndex(c *models.Collection) (vector.VectorIndex, error) {
	idx, err := vector.NewVectorIndex(s.indexType, len(c.Vectors[0]))
	if err != nil {
		return nil, err
	}
	if err := idx.Load(s.indexPath(c.Name)); err == nil && idx.Size() == c.Size() {
		return idx, nil
	}
	_ = idx.Close()
	s.logger.Info("rebuilding flat index", zap.String("name", c.Name))
	idx, err = vector.NewVectorIndex(s.indexType, len(c.Vectors[0]))
	if err != nil {
		return nil, err
	}
	if err := idx.Add(context.Background(), c.IDs, c.Vectors); err != nil {
		return nil, err
	}
	return idx, nil
}

func positions(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func (s *FlatStore) persist(fc *flatCollection) error {
	c := fc.data
	b, err := json.Marshal(flatRecord{Collection: c, Vectors: c.Vectors})
	if err != nil {
		return err
	}
	tmp := s.recordPath(c.Name) + ".tmp"
	if err := os.WriteFile(tmp, b, 0644); err != nil {
		return fmt.Errorf("write flat collection: %w", err)
	}
	if err := os.Rename(tmp, s.recordPath(c.Name)); err != nil {
		return err
	}
	if fc.index != nil {
		return fc.index.Save(s.indexPath(c.Name))
	}
	return nil
}

func (s *FlatStore) get(name string) (*flatCollection, error) {
	fc, ok := s.cols[name]
	if !ok {
		return nil, models.NewNotFoundError("collection " + name)
	}
	return fc, nil
}

func (s *FlatStore) Kind() string { return KindFlat }

// Ping checks that the index directory is still writable.
func (s *FlatStore) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func (s *FlatStore) CreateOrGet(ctx context.Context, name string, meta models.CollectionMeta) (*models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fc, ok := s.cols[name]; ok {
		return cloneCollection(fc.data), nil
	}
	now := time.Now().UTC()
	meta.Tags = append([]string{}, meta.Tags...)
	fc := &flatCollection{
		data: &models.Collection{Name: name, Meta: meta, CreatedAt: now, LastUpdated: now},
		pos:  map[string]int{},
	}
	if err := s.persist(fc); err != nil {
		return nil, err
	}
	s.cols[name] = fc
	return cloneCollection(fc.data), nil
}

func (s *FlatStore) Add(ctx context.Context, name string, chunks []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error) {
	if err := checkArity(chunks, vectors, metas); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, err := s.get(name)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return fc.data.Size(), nil
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return 0, models.NewValidationError("vectors", fmt.Sprintf("vector %d is empty", i))
		}
	}
	if fc.index == nil {
		if fc.index, err = vector.NewVectorIndex(s.indexType, len(vectors[0])); err != nil {
			return 0, err
		}
	}
	ids := newIDs(len(chunks))
	if err := fc.index.Add(ctx, ids, vectors); err != nil {
		return 0, err
	}
	c := fc.data
	for i, id := range ids {
		fc.pos[id] = len(c.IDs)
		c.IDs = append(c.IDs, id)
		c.Chunks = append(c.Chunks, chunks[i])
		c.Vectors = append(c.Vectors, append([]float32(nil), vectors[i]...))
		c.Metadatas = append(c.Metadatas, metas[i])
	}
	c.LastUpdated = time.Now().UTC()
	if err := s.persist(fc); err != nil {
		return 0, err
	}
	return c.Size(), nil
}

func (s *FlatStore) Query(ctx context.Context, name string, vec []float32, text string, topK int) ([]*models.RetrievedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fc, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if fc.index == nil || topK <= 0 {
		return []*models.RetrievedDocument{}, nil
	}
	hits, err := fc.index.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, fc.data.Size())
	order := make([]int, 0, len(hits))
	for _, h := range hits {
		i, ok := fc.pos[h.ID]
		if !ok {
			continue
		}
		scores[i] = h.Score
		order = append(order, i)
	}
	return results(fc.data, order, scores, topK), nil
}

func (s *FlatStore) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.cols[name]
	if !ok {
		return false, nil
	}
	if fc.index != nil {
		_ = fc.index.Close()
	}
	delete(s.cols, name)
	matches, _ := filepath.Glob(filepath.Join(s.dir, name+flatIndexExt+"*"))
	matches = append(matches, s.recordPath(name))
	for _, p := range matches {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return true, err
		}
	}
	return true, nil
}

func (s *FlatStore) Get(ctx context.Context, name string) (*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fc, err := s.get(name)
	if err != nil {
		return nil, err
	}
	return cloneCollection(fc.data), nil
}

func (s *FlatStore) List(ctx context.Context) ([]*models.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Collection, 0, len(s.cols))
	for _, fc := range s.cols {
		out = append(out, cloneCollection(fc.data))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FlatStore) UpdateMetadata(ctx context.Context, name string, patch models.CollectionMetaPatch) (*models.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, err := s.get(name)
	if err != nil {
		return nil, err
	}
	fc.data.Meta = patch.Apply(fc.data.Meta)
	fc.data.LastUpdated = time.Now().UTC()
	if err := s.persist(fc); err != nil {
		return nil, err
	}
	return cloneCollection(fc.data), nil
}

func (s *FlatStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fc, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return fc.data.Size(), nil
}

// Close releases every vector index.
func (s *FlatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fc := range s.cols {
		if fc.index != nil {
			_ = fc.index.Close()
		}
	}
	return nil
}
