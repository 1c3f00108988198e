package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/playground/internal/models"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(filepath.Join(t.TempDir(), "catalog.bleve"))
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedCatalog(t *testing.T, c *Catalog) {
	t.Helper()
	ctx := context.Background()
	infos := []models.CollectionInfo{
		{Name: "legal_docs", Description: "Contracts and agreements", Tags: []string{"law"}},
		{Name: "papers", Description: "Machine learning research", Tags: []string{"ml", "science"}},
	}
	for _, info := range infos {
		if err := c.Index(ctx, info); err != nil {
			t.Fatalf("Index: %v", err)
		}
	}
}

func TestCatalog_SearchFields(t *testing.T) {
	c := newTestCatalog(t)
	seedCatalog(t, c)
	ctx := context.Background()

	tests := []struct {
		query string
		want  string
	}{
		{"contracts", "legal_docs"},
		{"legal", "legal_docs"},
		{"law", "legal_docs"},
		{"research", "papers"},
		{"Science", "papers"},
	}
	for _, tt := range tests {
		got, err := c.Search(ctx, tt.query, 10)
		if err != nil {
			t.Fatalf("Search(%q): %v", tt.query, err)
		}
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("Search(%q) = %v, want [%s]", tt.query, got, tt.want)
		}
	}
}

func TestCatalog_SearchCorrectsSpelling(t *testing.T) {
	c := newTestCatalog(t)
	seedCatalog(t, c)

	got, err := c.Search(context.Background(), "contrcts", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "legal_docs" {
		t.Errorf("Search(contrcts) = %v", got)
	}
}

func TestCatalog_EmptyQuery(t *testing.T) {
	c := newTestCatalog(t)
	seedCatalog(t, c)
	got, err := c.Search(context.Background(), "  ", 10)
	if err != nil || len(got) != 0 {
		t.Errorf("Search(blank) = %v, %v", got, err)
	}
}

func TestCatalog_RemoveAndRebuild(t *testing.T) {
	c := newTestCatalog(t)
	seedCatalog(t, c)
	ctx := context.Background()

	if err := c.Remove(ctx, "papers"); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Search(ctx, "research", 10); len(got) != 0 {
		t.Errorf("removed collection still found: %v", got)
	}

	if err := c.Rebuild(ctx, []models.CollectionInfo{{Name: "recipes", Description: "Soup"}}); err != nil {
		t.Fatal(err)
	}
	n, _ := c.DocCount()
	if n != 1 {
		t.Errorf("DocCount after rebuild = %d, want 1", n)
	}
	if got, _ := c.Search(ctx, "contracts", 10); len(got) != 0 {
		t.Errorf("stale entry after rebuild: %v", got)
	}
	if got, _ := c.Search(ctx, "soup", 10); len(got) != 1 || got[0] != "recipes" {
		t.Errorf("Search(soup) = %v", got)
	}
}

func TestCatalog_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")
	c, err := NewCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	seedCatalog(t, c)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = NewCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if n, _ := c.DocCount(); n != 2 {
		t.Errorf("DocCount after reopen = %d", n)
	}
}

func TestCatalog_InMemory(t *testing.T) {
	c, err := NewCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	seedCatalog(t, c)
	if got, _ := c.Search(context.Background(), "ml", 10); len(got) != 1 {
		t.Errorf("Search(ml) = %v", got)
	}
}
