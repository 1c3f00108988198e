// Package indexer turns uploaded documents into collection chunks: extract
// text, split it into overlapping chunks, embed them and append them to a
// collection under the collection's lock.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/playground/internal/collection"
	"github.com/hyperjump/playground/internal/embedding"
	"github.com/hyperjump/playground/internal/extract"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes = 50 << 20

// Indexer ingests documents into collections.
type Indexer struct {
	collections *collection.Manager
	embedder    embedding.Embedder
	extractor   *extract.Extractor
	maxBytes    int64
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithMaxBytes sets the largest accepted document size.
func WithMaxBytes(n int64) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.maxBytes = n
		}
	}
}

// NewIndexer creates an indexer. embedder may be nil, in which case only the
// lexical backend can ingest.
func NewIndexer(collections *collection.Manager, embedder embedding.Embedder, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		collections: collections,
		embedder:    embedder,
		extractor:   extractor,
		maxBytes:    DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.extractor == nil {
		idx.extractor = extract.NewExtractor()
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// MaxBytes returns the upload size limit.
func (idx *Indexer) MaxBytes() int64 {
	return idx.maxBytes
}

// CheckUpload validates a document before it is read in full.
func (idx *Indexer) CheckUpload(filename string, size int64) error {
	if !extract.Supported(filename) {
		return fmt.Errorf("%w: %q (allowed: %s)", models.ErrUnsupportedFormat,
			filepath.Ext(filename), strings.Join(extract.SupportedExtensions, ", "))
	}
	if size == 0 {
		return models.NewValidationError("file", "file is empty")
	}
	if size > idx.maxBytes {
		return models.NewValidationError("file", fmt.Sprintf("file is %s, larger than the %s limit",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(idx.maxBytes))))
	}
	return nil
}

// IngestBytes extracts, chunks, embeds and appends one document to
// opts.CollectionName, creating the collection if needed.
func (idx *Indexer) IngestBytes(ctx context.Context, filename string, content []byte, opts models.UploadOptions) (*models.UploadResult, error) {
	if err := models.Validate(opts); err != nil {
		return nil, err
	}
	if err := idx.CheckUpload(filename, int64(len(content))); err != nil {
		return nil, err
	}
	if err := idx.collections.Available(); err != nil {
		return nil, err
	}
	if idx.collections.NeedsVectors() && idx.embedder == nil {
		return nil, models.ErrEmbeddingUnavailable
	}

	docName := filepath.Base(filename)
	text, err := idx.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", docName, err)
	}
	chunks := Split(text, opts.ChunkSize, opts.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, models.NewValidationError("file", "no text content found in "+docName)
	}

	name := models.SanitizeCollectionName(opts.CollectionName)
	unlock := idx.collections.Lock(name)
	defer unlock()

	// Embed before creating the collection so a failed batch leaves nothing behind.
	vectors := make([][]float32, len(chunks))
	if idx.collections.NeedsVectors() {
		if vectors, err = idx.embedder.EmbedBatch(ctx, chunks); err != nil {
			return nil, fmt.Errorf("embed %s: %w", docName, err)
		}
	}

	meta := models.CollectionMeta{Description: opts.Description, Tags: opts.Tags, IsPublic: opts.IsPublic}
	if meta.Description == "" {
		meta.Description = "Collection for " + docName
	}
	if _, err := idx.collections.CreateOrGet(ctx, name, meta); err != nil {
		return nil, err
	}

	metas := make([]models.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		metas[i] = models.NewChunkMetadata(docName, i, utils.RuneLen(c))
	}
	size, err := idx.collections.Add(ctx, name, chunks, vectors, metas)
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	idx.logger.Info("document ingested",
		zap.String("collection", name),
		zap.String("document", docName),
		zap.Int("chunks", len(chunks)),
		zap.Int("collection_size", size))
	return &models.UploadResult{
		CollectionName:  name,
		DocumentName:    docName,
		ChunksProcessed: len(chunks),
		CollectionSize:  size,
	}, nil
}

// IngestFile reads path and ingests it.
func (idx *Indexer) IngestFile(ctx context.Context, path string, opts models.UploadOptions) (*models.UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if err := idx.CheckUpload(path, info.Size()); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.IngestBytes(ctx, filepath.Base(path), content, opts)
}

// IngestDirectory walks dir and ingests every regular file whose extension is
// in allowedExts (or every supported file when allowedExts is empty). It
// returns the number of files ingested and stops at the first error.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, allowedExts []string, opts models.UploadOptions) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}
	n := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !ExtensionAllowed(filepath.Ext(path), allowedExts) || !extract.Supported(path) {
			return nil
		}
		if _, err := idx.IngestFile(ctx, path, opts); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		n++
		return nil
	})
	return n, err
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the
// leading dot. An empty list allows everything.
func ExtensionAllowed(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	norm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == norm {
			return true
		}
	}
	return false
}
