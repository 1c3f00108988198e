package collection

import (
	"context"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/storage"
	"github.com/hyperjump/playground/internal/vector"
)

// DocumentStore keeps collections in SQLite and ranks by brute-force cosine
// similarity over the stored embeddings.
type DocumentStore struct {
	db *storage.SQLiteStorage
}

// NewDocumentStore returns a document backend on db. db is shared and not
// closed by the store.
func NewDocumentStore(db *storage.SQLiteStorage) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Kind() string { return KindDocument }

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *DocumentStore) CreateOrGet(ctx context.Context, name string, meta models.CollectionMeta) (*models.Collection, error) {
	if _, _, err := s.db.CreateCollection(ctx, name, meta); err != nil {
		return nil, err
	}
	return s.db.LoadCollection(ctx, name)
}

func (s *DocumentStore) Add(ctx context.Context, name string, chunks []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error) {
	if err := checkArity(chunks, vectors, metas); err != nil {
		return 0, err
	}
	return s.db.AppendChunks(ctx, name, newIDs(len(chunks)), chunks, vectors, metas)
}

func (s *DocumentStore) Query(ctx context.Context, name string, vec []float32, text string, topK int) ([]*models.RetrievedDocument, error) {
	c, err := s.db.LoadCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, c.Size())
	for i, v := range c.Vectors {
		scores[i] = vector.CosineSimilarity(vec, v)
	}
	return rank(c, scores, topK), nil
}

func (s *DocumentStore) Delete(ctx context.Context, name string) (bool, error) {
	return s.db.DeleteCollection(ctx, name)
}

func (s *DocumentStore) Get(ctx context.Context, name string) (*models.Collection, error) {
	return s.db.LoadCollection(ctx, name)
}

func (s *DocumentStore) List(ctx context.Context) ([]*models.Collection, error) {
	infos, err := s.db.ListCollectionInfos(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Collection, 0, len(infos))
	for _, info := range infos {
		c, err := s.db.LoadCollection(ctx, info.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *DocumentStore) UpdateMetadata(ctx context.Context, name string, patch models.CollectionMetaPatch) (*models.Collection, error) {
	c, err := s.db.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateCollectionMeta(ctx, name, patch.Apply(c.Meta)); err != nil {
		return nil, err
	}
	return s.db.LoadCollection(ctx, name)
}

func (s *DocumentStore) Count(ctx context.Context, name string) (int, error) {
	return s.db.CountChunks(ctx, name)
}

// Close is a no-op; the database belongs to the caller.
func (s *DocumentStore) Close() error { return nil }
