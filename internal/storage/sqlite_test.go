package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/playground/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_CreateCollectionIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	c, created, err := store.CreateCollection(ctx, "docs", models.CollectionMeta{Description: "first", Tags: []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !created || c.Meta.Description != "first" || len(c.Meta.Tags) != 1 {
		t.Errorf("created=%v collection=%+v", created, c)
	}

	again, created, err := store.CreateCollection(ctx, "docs", models.CollectionMeta{Description: "second"})
	if err != nil {
		t.Fatal(err)
	}
	if created || again.Meta.Description != "first" {
		t.Errorf("existing collection should be returned unchanged, got created=%v %+v", created, again.Meta)
	}
}

func TestSQLiteStorage_AppendAndLoad(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	if _, _, err := store.CreateCollection(ctx, "docs", models.CollectionMeta{}); err != nil {
		t.Fatal(err)
	}

	n, err := store.AppendChunks(ctx, "docs",
		[]string{"1", "2"},
		[]string{"alpha", "beta"},
		[][]float32{{1, 0}, {0, 1}},
		[]models.ChunkMetadata{models.NewChunkMetadata("a.txt", 0, 5), models.NewChunkMetadata("a.txt", 1, 4)},
	)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count after first append = %d", n)
	}
	n, err = store.AppendChunks(ctx, "docs",
		[]string{"3"}, []string{"gamma"}, [][]float32{{0.5, 0.5}},
		[]models.ChunkMetadata{models.NewChunkMetadata("b.txt", 0, 5)},
	)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count after second append = %d", n)
	}

	c, err := store.LoadCollection(ctx, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if !c.Aligned() || c.Size() != 3 {
		t.Fatalf("collection not aligned: %d chunks, %d vectors", len(c.Chunks), len(c.Vectors))
	}
	if c.Chunks[2] != "gamma" || c.IDs[0] != "1" {
		t.Errorf("append order not preserved: %v", c.Chunks)
	}
	if c.Vectors[1][1] != 1 {
		t.Errorf("vector round trip: %v", c.Vectors[1])
	}
	if c.Metadatas[2].Source() != "b.txt" {
		t.Errorf("metadata round trip: %v", c.Metadatas[2])
	}
	if got, _ := store.CountChunks(ctx, "docs"); got != 3 {
		t.Errorf("CountChunks = %d", got)
	}
}

func TestSQLiteStorage_AppendArityMismatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, _, _ = store.CreateCollection(ctx, "docs", models.CollectionMeta{})
	_, err := store.AppendChunks(ctx, "docs", []string{"1"}, []string{"a", "b"}, [][]float32{{1}}, []models.ChunkMetadata{{}})
	if !errors.Is(err, models.ErrArityMismatch) {
		t.Errorf("expected ErrArityMismatch, got %v", err)
	}
}

func TestSQLiteStorage_AppendMissingCollection(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.AppendChunks(context.Background(), "nope",
		[]string{"1"}, []string{"a"}, [][]float32{{1}}, []models.ChunkMetadata{{}})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_UpdateAndDeleteCollection(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, _, _ = store.CreateCollection(ctx, "docs", models.CollectionMeta{})
	_, _ = store.AppendChunks(ctx, "docs", []string{"1"}, []string{"a"}, [][]float32{{1}}, []models.ChunkMetadata{{}})

	if err := store.UpdateCollectionMeta(ctx, "docs", models.CollectionMeta{Description: "d", IsPublic: true}); err != nil {
		t.Fatal(err)
	}
	c, _ := store.GetCollectionInfo(ctx, "docs")
	if c.Meta.Description != "d" || !c.Meta.IsPublic {
		t.Errorf("meta not updated: %+v", c.Meta)
	}
	if err := store.UpdateCollectionMeta(ctx, "nope", models.CollectionMeta{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("update missing: %v", err)
	}

	list, _ := store.ListCollectionInfos(ctx)
	if len(list) != 1 {
		t.Errorf("list = %d", len(list))
	}

	ok, err := store.DeleteCollection(ctx, "docs")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	ok, _ = store.DeleteCollection(ctx, "docs")
	if ok {
		t.Error("second delete should report false")
	}
	if _, err := store.LoadCollection(ctx, "docs"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("load deleted: %v", err)
	}
}

func TestConfigRepositories(t *testing.T) {
	repos := map[string]ConfigRepository{
		"sqlite": newTestStorage(t).Configs(),
		"memory": NewMemoryConfigRepository(),
	}
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := NewPromptConfig(&models.PromptConfigSaveRequest{
				Name:       "greeting",
				Prompt:     "Say hi",
				Parameters: map[string]interface{}{"temperature": 0.5, "max_tokens": 10.0},
				Tags:       []string{"Demo"},
			})
			if err := repo.Save(ctx, cfg); err != nil {
				t.Fatal(err)
			}
			got, err := repo.Get(ctx, cfg.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Name != "greeting" || got.Parameters["temperature"] != 0.5 {
				t.Errorf("Get = %+v", got)
			}

			merged, err := MergePromptConfig(got, &models.PromptConfigSaveRequest{
				Name:       "greeting v2",
				Prompt:     "Say hello",
				Parameters: map[string]interface{}{"temperature": 0.9},
			})
			if err != nil {
				t.Fatal(err)
			}
			if err := repo.Update(ctx, merged); err != nil {
				t.Fatal(err)
			}
			got, _ = repo.Get(ctx, cfg.ID)
			if got.Name != "greeting v2" || got.Parameters["temperature"] != 0.9 || got.Parameters["max_tokens"] != 10.0 {
				t.Errorf("after update = %+v", got)
			}
			if !got.CreatedAt.Equal(cfg.CreatedAt) {
				t.Errorf("created_at changed: %v -> %v", cfg.CreatedAt, got.CreatedAt)
			}
			if !got.UpdatedAt.After(cfg.UpdatedAt) {
				t.Errorf("updated_at not bumped")
			}
			if len(got.Tags) != 1 {
				t.Errorf("tags should be kept when not sent: %v", got.Tags)
			}

			found, _ := repo.SearchByTag(ctx, "demo")
			if len(found) != 1 {
				t.Errorf("SearchByTag(demo) = %d", len(found))
			}
			found, _ = repo.SearchByTag(ctx, "other")
			if len(found) != 0 {
				t.Errorf("SearchByTag(other) = %d", len(found))
			}

			if err := repo.Delete(ctx, cfg.ID); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.Get(ctx, cfg.ID); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("Get after delete: %v", err)
			}
			if err := repo.Delete(ctx, cfg.ID); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("second delete: %v", err)
			}
		})
	}
}

func TestMetricsRepositories(t *testing.T) {
	repos := map[string]MetricsRepository{
		"sqlite": newTestStorage(t).Metrics(),
		"memory": NewMemoryMetricsRepository(),
	}
	now := time.Now().UTC()
	for name, repo := range repos {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := &models.GenerationMetric{Timestamp: now.Add(-2 * time.Hour), ModelName: "m", Provider: "p", TokensUsed: 1}
			recent := &models.GenerationMetric{Timestamp: now, ModelName: "m", Provider: "p", TokensUsed: 7, LatencyMS: 12.5, Success: true}
			if err := repo.Record(ctx, old); err != nil {
				t.Fatal(err)
			}
			if err := repo.Record(ctx, recent); err != nil {
				t.Fatal(err)
			}
			got, err := repo.Since(ctx, now.Add(-time.Hour))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].TokensUsed != 7 || !got[0].Success || got[0].LatencyMS != 12.5 {
				t.Errorf("Since = %+v", got)
			}
		})
	}
}
