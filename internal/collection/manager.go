package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// Catalog indexes collection descriptors for full-text search.
type Catalog interface {
	Index(ctx context.Context, info models.CollectionInfo) error
	Remove(ctx context.Context, name string) error
	Rebuild(ctx context.Context, infos []models.CollectionInfo) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// Manager is the collection API used by the server, the RAG orchestrator and
// ingestion. It sanitizes names, owns the per-collection locks and keeps the
// catalog in step with the store. A Manager without a store fails every call
// with models.ErrNoBackendAvailable.
type Manager struct {
	store   Store
	locks   *Locker
	catalog Catalog
	logger  *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCatalog enables collection search through c.
func WithCatalog(c Catalog) ManagerOption {
	return func(m *Manager) { m.catalog = c }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager wraps store. store may be nil when no backend is available.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, locks: NewLocker()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = utils.OrNop(m.logger)
	return m
}

// Available returns models.ErrNoBackendAvailable when there is no store.
func (m *Manager) Available() error {
	if m.store == nil {
		return models.ErrNoBackendAvailable
	}
	return nil
}

// Kind returns the active backend kind, or "" without a store.
func (m *Manager) Kind() string {
	if m.store == nil {
		return ""
	}
	return m.store.Kind()
}

// NeedsVectors reports whether the active backend ranks by embeddings.
func (m *Manager) NeedsVectors() bool {
	return m.store != nil && m.store.Kind() != KindLexical
}

// Lock serializes work on one collection. The caller must call unlock.
func (m *Manager) Lock(name string) (unlock func()) {
	return m.locks.Lock(models.SanitizeCollectionName(name))
}

// CreateOrGet returns the collection, creating and cataloguing it if new.
func (m *Manager) CreateOrGet(ctx context.Context, name string, meta models.CollectionMeta) (*models.Collection, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	c, err := m.store.CreateOrGet(ctx, models.SanitizeCollectionName(name), meta)
	if err != nil {
		return nil, err
	}
	m.catalogIndex(ctx, c)
	return c, nil
}

// Add appends to a collection. The caller holds the collection's lock.
func (m *Manager) Add(ctx context.Context, name string, chunks []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error) {
	if err := m.Available(); err != nil {
		return 0, err
	}
	n, err := m.store.Add(ctx, models.SanitizeCollectionName(name), chunks, vectors, metas)
	if errors.Is(err, models.ErrArityMismatch) {
		m.logger.Error("collection append rejected", zap.String("collection", name), zap.Error(err))
	}
	return n, err
}

// Query returns the topK chunks of name closest to the query.
func (m *Manager) Query(ctx context.Context, name string, vec []float32, text string, topK int) ([]*models.RetrievedDocument, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	return m.store.Query(ctx, models.SanitizeCollectionName(name), vec, text, topK)
}

// Count returns the number of chunks in name.
func (m *Manager) Count(ctx context.Context, name string) (int, error) {
	if err := m.Available(); err != nil {
		return 0, err
	}
	return m.store.Count(ctx, models.SanitizeCollectionName(name))
}

// Info returns the API view of one collection.
func (m *Manager) Info(ctx context.Context, name string) (models.CollectionInfo, error) {
	if err := m.Available(); err != nil {
		return models.CollectionInfo{}, err
	}
	c, err := m.store.Get(ctx, models.SanitizeCollectionName(name))
	if err != nil {
		return models.CollectionInfo{}, err
	}
	return models.InfoFor(c), nil
}

// Stats returns chunk and document counts with the collection metadata.
func (m *Manager) Stats(ctx context.Context, name string) (*models.CollectionStats, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	c, err := m.store.Get(ctx, models.SanitizeCollectionName(name))
	if err != nil {
		return nil, err
	}
	info := models.InfoFor(c)
	meta := c.Meta
	meta.Tags = info.Tags
	return &models.CollectionStats{
		Name:          c.Name,
		DocumentCount: info.DocumentCount,
		ChunkCount:    info.ChunkCount,
		Metadata:      meta,
	}, nil
}

// List returns every collection's API view ordered by name.
func (m *Manager) List(ctx context.Context) ([]models.CollectionInfo, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	cols, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CollectionInfo, len(cols))
	for i, c := range cols {
		out[i] = models.InfoFor(c)
	}
	return out, nil
}

// Search finds collections whose name, description or tags match query.
// Without a catalog a case-insensitive substring match is used.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]models.CollectionInfo, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	if m.catalog == nil {
		return m.searchSubstring(ctx, query, limit)
	}
	names, err := m.catalog.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.CollectionInfo, 0, len(names))
	for _, name := range names {
		info, err := m.Info(ctx, name)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

func (m *Manager) searchSubstring(ctx context.Context, query string, limit int) ([]models.CollectionInfo, error) {
	all, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.CollectionInfo{}
	if q == "" {
		return out, nil
	}
	for _, info := range all {
		hay := strings.ToLower(info.Name + " " + info.Description + " " + strings.Join(info.Tags, " "))
		if strings.Contains(hay, q) {
			out = append(out, info)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Update applies a metadata patch and returns the updated view.
func (m *Manager) Update(ctx context.Context, name string, patch models.CollectionMetaPatch) (models.CollectionInfo, error) {
	if err := m.Available(); err != nil {
		return models.CollectionInfo{}, err
	}
	name = models.SanitizeCollectionName(name)
	defer m.locks.Lock(name)()
	c, err := m.store.UpdateMetadata(ctx, name, patch)
	if err != nil {
		return models.CollectionInfo{}, err
	}
	m.catalogIndex(ctx, c)
	return models.InfoFor(c), nil
}

// Export returns every chunk of name in append order.
func (m *Manager) Export(ctx context.Context, name string) (*models.CollectionExport, error) {
	if err := m.Available(); err != nil {
		return nil, err
	}
	c, err := m.store.Get(ctx, models.SanitizeCollectionName(name))
	if err != nil {
		return nil, err
	}
	return models.ExportOf(c), nil
}

// Delete removes a collection and reports whether it existed.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	if err := m.Available(); err != nil {
		return false, err
	}
	name = models.SanitizeCollectionName(name)
	unlock := m.locks.Lock(name)
	ok, err := m.store.Delete(ctx, name)
	unlock()
	if err != nil {
		return ok, err
	}
	if ok && m.catalog != nil {
		if err := m.catalog.Remove(ctx, name); err != nil {
			m.logger.Warn("catalog remove failed", zap.String("collection", name), zap.Error(err))
		}
	}
	return ok, nil
}

// BulkDelete deletes every named collection, reporting which ones existed.
func (m *Manager) BulkDelete(ctx context.Context, names []string) (*models.BulkDeleteResult, error) {
	res := &models.BulkDeleteResult{Deleted: []string{}, NotFound: []string{}}
	for _, name := range names {
		ok, err := m.Delete(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", name, err)
		}
		if ok {
			res.Deleted = append(res.Deleted, models.SanitizeCollectionName(name))
		} else {
			res.NotFound = append(res.NotFound, models.SanitizeCollectionName(name))
		}
	}
	return res, nil
}

// Merge appends every source collection to target, creating target if
// needed, and optionally deletes the sources afterwards. All sources must
// exist; a source equal to target is skipped.
func (m *Manager) Merge(ctx context.Context, req *models.MergeRequest) (models.CollectionInfo, error) {
	if err := m.Available(); err != nil {
		return models.CollectionInfo{}, err
	}
	target := models.SanitizeCollectionName(req.Target)
	seen := map[string]bool{target: true}
	var sources []*models.Collection
	for _, name := range req.Sources {
		name = models.SanitizeCollectionName(name)
		if seen[name] {
			continue
		}
		seen[name] = true
		c, err := m.store.Get(ctx, name)
		if err != nil {
			return models.CollectionInfo{}, err
		}
		sources = append(sources, c)
	}

	meta := models.CollectionMeta{}
	if len(sources) > 0 {
		meta = sources[0].Meta
	}
	if _, err := m.CreateOrGet(ctx, target, meta); err != nil {
		return models.CollectionInfo{}, err
	}
	for _, src := range sources {
		vectors := src.Vectors
		if len(vectors) != src.Size() {
			vectors = make([][]float32, src.Size())
		}
		unlock := m.locks.Lock(target)
		_, err := m.store.Add(ctx, target, src.Chunks, vectors, src.Metadatas)
		unlock()
		if err != nil {
			return models.CollectionInfo{}, fmt.Errorf("merge %s into %s: %w", src.Name, target, err)
		}
		m.logger.Info("collection merged", zap.String("source", src.Name), zap.String("target", target), zap.Int("chunks", src.Size()))
	}
	if req.DeleteSources {
		for _, src := range sources {
			if _, err := m.Delete(ctx, src.Name); err != nil {
				return models.CollectionInfo{}, err
			}
		}
	}
	return m.Info(ctx, target)
}

// RebuildCatalog re-indexes every collection in the catalog.
func (m *Manager) RebuildCatalog(ctx context.Context) error {
	if m.catalog == nil || m.store == nil {
		return nil
	}
	infos, err := m.List(ctx)
	if err != nil {
		return err
	}
	return m.catalog.Rebuild(ctx, infos)
}

func (m *Manager) catalogIndex(ctx context.Context, c *models.Collection) {
	if m.catalog == nil {
		return
	}
	if err := m.catalog.Index(ctx, models.InfoFor(c)); err != nil {
		m.logger.Warn("catalog index failed", zap.String("collection", c.Name), zap.Error(err))
	}
}

// Close closes the store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
