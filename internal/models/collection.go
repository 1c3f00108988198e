// Package models defines the data structures shared by the collection store,
// the RAG pipeline, providers, downloads and prompt configs.
package models

import "time"

// Chunk is a bounded substring of an ingested document, the unit of retrieval.
type Chunk struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	SourceDocument  string `json:"source_document"`
	IndexInDocument int    `json:"index_in_document"`
	CharLength      int    `json:"char_length"`
}

// ChunkMetadata is the metadata stored next to every chunk.
type ChunkMetadata map[string]interface{}

// Metadata keys written at ingestion time.
const (
	MetaSource     = "source"
	MetaChunkIndex = "chunk_index"
	MetaChunkSize  = "chunk_size"
)

// NewChunkMetadata builds the metadata for chunk i of source.
func NewChunkMetadata(source string, index, size int) ChunkMetadata {
	return ChunkMetadata{
		MetaSource:     source,
		MetaChunkIndex: index,
		MetaChunkSize:  size,
	}
}

// Source returns the source document name, or "" when unset.
func (m ChunkMetadata) Source() string {
	if s, ok := m[MetaSource].(string); ok {
		return s
	}
	return ""
}

// CollectionMeta is the mutable descriptive part of a collection.
type CollectionMeta struct {
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	IsPublic    bool     `json:"is_public"`
}

// Collection is a named, independently queryable set of chunks and vectors.
// Chunks, vectors, metadatas and ids are parallel and always the same length.
type Collection struct {
	Name        string          `json:"name"`
	Meta        CollectionMeta  `json:"meta"`
	CreatedAt   time.Time       `json:"created_at"`
	LastUpdated time.Time       `json:"last_updated"`
	IDs         []string        `json:"ids"`
	Chunks      []string        `json:"chunks"`
	Vectors     [][]float32     `json:"-"`
	Metadatas   []ChunkMetadata `json:"metadatas"`
}

// Size returns the number of chunks.
func (c *Collection) Size() int {
	return len(c.Chunks)
}

// Aligned reports whether the parallel slices have equal length.
func (c *Collection) Aligned() bool {
	n := len(c.Chunks)
	return len(c.IDs) == n && len(c.Metadatas) == n && (c.Vectors == nil || len(c.Vectors) == n)
}

// CollectionInfo is the API view of a collection.
type CollectionInfo struct {
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Tags          []string  `json:"tags"`
	IsPublic      bool      `json:"is_public"`
	DocumentCount int       `json:"document_count"`
	ChunkCount    int       `json:"chunk_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CollectionStats is returned by the stats endpoint.
type CollectionStats struct {
	Name          string         `json:"name"`
	DocumentCount int            `json:"document_count"`
	ChunkCount    int            `json:"chunk_count"`
	Metadata      CollectionMeta `json:"metadata"`
}

// ExportedChunk is one chunk in a collection export.
type ExportedChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// CollectionExport is the full, ordered content of a collection.
type CollectionExport struct {
	Name   string          `json:"name"`
	Info   CollectionInfo  `json:"info"`
	Chunks []ExportedChunk `json:"chunks"`
}

// RetrievedDocument is one ranked query hit. Never persisted.
type RetrievedDocument struct {
	Text            string        `json:"text"`
	Metadata        ChunkMetadata `json:"metadata"`
	SimilarityScore float64       `json:"similarity_score"`
	Rank            int           `json:"rank"`
}

// CollectionMetaPatch is a partial metadata update; nil fields are left alone.
type CollectionMetaPatch struct {
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsPublic    *bool    `json:"is_public,omitempty"`
}

// Apply returns meta with the patch applied.
func (p CollectionMetaPatch) Apply(meta CollectionMeta) CollectionMeta {
	if p.Description != nil {
		meta.Description = *p.Description
	}
	if p.Tags != nil {
		meta.Tags = append([]string(nil), p.Tags...)
	}
	if p.IsPublic != nil {
		meta.IsPublic = *p.IsPublic
	}
	return meta
}

// InfoFor builds the API view of c.
func InfoFor(c *Collection) CollectionInfo {
	docs := make(map[string]struct{})
	for _, m := range c.Metadatas {
		docs[m.Source()] = struct{}{}
	}
	tags := c.Meta.Tags
	if tags == nil {
		tags = []string{}
	}
	return CollectionInfo{
		Name:          c.Name,
		Description:   c.Meta.Description,
		Tags:          tags,
		IsPublic:      c.Meta.IsPublic,
		DocumentCount: len(docs),
		ChunkCount:    c.Size(),
		CreatedAt:     c.CreatedAt,
		LastUpdated:   c.LastUpdated,
	}
}

// ExportOf returns the ordered export of c.
func ExportOf(c *Collection) *CollectionExport {
	out := &CollectionExport{
		Name:   c.Name,
		Info:   InfoFor(c),
		Chunks: make([]ExportedChunk, c.Size()),
	}
	for i := range c.Chunks {
		out.Chunks[i] = ExportedChunk{ID: c.IDs[i], Text: c.Chunks[i], Metadata: c.Metadatas[i]}
	}
	return out
}
