package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hyperjump/playground/internal/models"
)

// CreateCollection inserts an empty collection. If name already exists the
// stored row is returned unchanged and created is false.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, name string, meta models.CollectionMeta) (c *models.Collection, created bool, err error) {
	tags, err := marshalTags(meta.Tags)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, description, tags, is_public, created_at, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, meta.Description, tags, meta.IsPublic, now, now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert collection: %w", err)
	}
	n, _ := res.RowsAffected()
	c, err = s.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return c, n > 0, nil
}

// GetCollectionInfo returns the collection row without chunks.
func (s *SQLiteStorage) GetCollectionInfo(ctx context.Context, name string) (*models.Collection, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, tags, is_public, created_at, last_updated
		 FROM collections WHERE name = ?`, name)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("collection " + name)
	}
	return c, err
}

// ListCollectionInfos returns every collection row ordered by name, without chunks.
func (s *SQLiteStorage) ListCollectionInfos(ctx context.Context) ([]*models.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, tags, is_public, created_at, last_updated
		 FROM collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCollectionMeta overwrites the descriptive fields and bumps last_updated.
func (s *SQLiteStorage) UpdateCollectionMeta(ctx context.Context, name string, meta models.CollectionMeta) error {
	tags, err := marshalTags(meta.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE collections SET description = ?, tags = ?, is_public = ?, last_updated = ? WHERE name = ?`,
		meta.Description, tags, meta.IsPublic, time.Now().UTC(), name,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("collection " + name)
	}
	return nil
}

// DeleteCollection removes a collection and its chunks. Returns false if it did not exist.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_chunks WHERE collection = ?`, name); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

// AppendChunks appends chunks after the collection's current last position in
// one transaction and returns the new chunk count. All four slices must have
// equal length.
func (s *SQLiteStorage) AppendChunks(ctx context.Context, name string, ids, texts []string, vectors [][]float32, metas []models.ChunkMetadata) (int, error) {
	if len(ids) != len(texts) || len(texts) != len(vectors) || len(vectors) != len(metas) {
		return 0, models.ErrArityMismatch
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, models.NewNotFoundError("collection " + name)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_chunks WHERE collection = ?`, name).Scan(&count); err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO collection_chunks (id, collection, position, text, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range texts {
		meta, err := json.Marshal(metas[i])
		if err != nil {
			return 0, fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ids[i], name, count+i, texts[i], string(meta), encodeVector(vectors[i])); err != nil {
			return 0, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET last_updated = ? WHERE name = ?`, time.Now().UTC(), name); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count + len(texts), nil
}

// LoadCollection returns the collection with all chunks, vectors and metadata in position order.
func (s *SQLiteStorage) LoadCollection(ctx context.Context, name string) (*models.Collection, error) {
	c, err := s.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM collection_chunks
		 WHERE collection = ? ORDER BY position`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, text, metaJSON string
			blob               []byte
		)
		if err := rows.Scan(&id, &text, &metaJSON, &blob); err != nil {
			return nil, err
		}
		var meta models.ChunkMetadata
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
		}
		c.IDs = append(c.IDs, id)
		c.Chunks = append(c.Chunks, text)
		c.Metadatas = append(c.Metadatas, meta)
		c.Vectors = append(c.Vectors, decodeVector(blob))
	}
	return c, rows.Err()
}

// CountChunks returns the number of chunks in the collection.
func (s *SQLiteStorage) CountChunks(ctx context.Context, name string) (int, error) {
	if _, err := s.GetCollectionInfo(ctx, name); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collection_chunks WHERE collection = ?`, name).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(r rowScanner) (*models.Collection, error) {
	var (
		c    models.Collection
		tags string
	)
	if err := r.Scan(&c.Name, &c.Meta.Description, &tags, &c.Meta.IsPublic, &c.CreatedAt, &c.LastUpdated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &c.Meta.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &c, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(b), nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
