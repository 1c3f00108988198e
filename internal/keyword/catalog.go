// Package keyword keeps a full-text catalog of collections (name, description,
// tags) in Bleve so collections can be found by what they contain.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/hyperjump/playground/internal/models"
)

// catalog field names
const (
	fieldName        = "name"
	fieldDescription = "description"
	fieldTags        = "tags"
)

var catalogFields = []string{fieldName, fieldDescription, fieldTags}

// Catalog is a Bleve index of collection descriptors keyed by collection name.
type Catalog struct {
	index bleve.Index
	spell *SpellChecker
	mu    sync.RWMutex
}

// NewCatalog creates or opens the catalog at path. An empty path keeps the
// index in memory.
func NewCatalog(path string) (*Catalog, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase and tokenize, no stemming
	text.Analyzer = standard.Name
	for _, f := range catalogFields {
		docMapping.AddFieldMappingsAt(f, text)
	}
	im.DefaultMapping = docMapping

	var (
		index bleve.Index
		err   error
	)
	switch {
	case path == "":
		index, err = bleve.NewMemOnly(im)
	default:
		if _, statErr := os.Stat(path); statErr == nil {
			index, err = bleve.Open(path)
		} else {
			index, err = bleve.New(path, im)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open collection catalog: %w", err)
	}
	c := &Catalog{index: index}
	c.spell = NewSpellChecker(c)
	return c, nil
}

// searchableName turns "legal_docs-2024" into "legal docs 2024"; the
// standard analyzer does not split on underscores.
func searchableName(name string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}

func catalogDocument(info models.CollectionInfo) map[string]interface{} {
	return map[string]interface{}{
		fieldName:        searchableName(info.Name),
		fieldDescription: info.Description,
		fieldTags:        strings.Join(info.Tags, " "),
	}
}

// Index adds or replaces the descriptor of one collection.
func (c *Catalog) Index(ctx context.Context, info models.CollectionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.index.Index(info.Name, catalogDocument(info)); err != nil {
		return fmt.Errorf("index collection %s: %w", info.Name, err)
	}
	c.spell.Invalidate()
	return nil
}

// Remove drops a collection from the catalog. Unknown names are ignored.
func (c *Catalog) Remove(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.index.Delete(name); err != nil {
		return fmt.Errorf("remove collection %s: %w", name, err)
	}
	c.spell.Invalidate()
	return nil
}

// Rebuild replaces the catalog contents with infos.
func (c *Catalog) Rebuild(ctx context.Context, infos []models.CollectionInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, err := c.index.DocCount()
	if err != nil {
		return err
	}
	batch := c.index.NewBatch()
	if count > 0 {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = int(count)
		res, err := c.index.Search(req)
		if err != nil {
			return fmt.Errorf("list catalog: %w", err)
		}
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
	}
	for _, info := range infos {
		if err := batch.Index(info.Name, catalogDocument(info)); err != nil {
			return fmt.Errorf("index collection %s: %w", info.Name, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("rebuild catalog: %w", err)
	}
	c.spell.Invalidate()
	return nil
}

// Search returns the names of collections matching query, best first. When
// nothing matches, a spelling-corrected query is tried once.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return []string{}, nil
	}
	names, err := c.match(query, limit)
	if err != nil || len(names) > 0 {
		return names, err
	}
	if corrected, changed := c.spell.Correct(query); changed {
		return c.match(corrected, limit)
	}
	return names, nil
}

func (c *Catalog) match(query string, limit int) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(searchableName(query)))
	if limit > 0 {
		req.Size = limit
	}
	res, err := c.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	out := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = hit.ID
	}
	return out, nil
}

// GetAllTerms returns the distinct indexed terms across all catalog fields.
func (c *Catalog) GetAllTerms() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	var terms []string
	for _, field := range catalogFields {
		dict, err := c.index.FieldDict(field)
		if err != nil {
			continue
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				seen[entry.Term] = struct{}{}
				terms = append(terms, entry.Term)
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// GetTermFrequency returns how many collections mention term.
func (c *Catalog) GetTermFrequency(term string) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(term))
	req.Size = 0
	res, err := c.index.Search(req)
	if err != nil {
		return 0, err
	}
	return int(res.Total), nil
}

// DocCount returns the number of catalogued collections.
func (c *Catalog) DocCount() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the Bleve index.
func (c *Catalog) Close() error {
	return c.index.Close()
}
