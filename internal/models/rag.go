package models

// RAG request bounds and defaults.
const (
	DefaultTopK         = 5
	MaxTopK             = 20
	DefaultRAGMaxTokens = 1024
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultCollection   = "default"
)

// RAGRequest is the body of POST /rag/query.
type RAGRequest struct {
	Query          string   `json:"query" validate:"required"`
	CollectionName string   `json:"collection_name" validate:"required"`
	ModelName      string   `json:"model_name,omitempty"`
	Provider       Provider `json:"provider" validate:"required,oneof=vllm huggingface ollama openai anthropic google"`
	TopK           int      `json:"top_k" validate:"gte=1,lte=20"`
	Temperature    float64  `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int      `json:"max_tokens" validate:"gte=1,lte=8192"`
}

// NewRAGRequest returns a request populated with defaults, ready to decode into.
func NewRAGRequest() RAGRequest {
	return RAGRequest{
		Provider:    ProviderHuggingFace,
		TopK:        DefaultTopK,
		Temperature: 0.7,
		MaxTokens:   DefaultRAGMaxTokens,
	}
}

// RAGResponse is the body returned by POST /rag/query.
type RAGResponse struct {
	Query              string              `json:"query"`
	Answer             string              `json:"answer"`
	RetrievedDocuments []RetrievedDocument `json:"retrieved_documents"`
	ModelResponse      GenerationResult    `json:"model_response"`
}

// UploadOptions are the ingestion parameters of POST /rag/upload.
type UploadOptions struct {
	CollectionName string `validate:"required"`
	ChunkSize      int    `validate:"gte=100,lte=5000"`
	ChunkOverlap   int    `validate:"gte=0,lte=1000"`
	Description    string
	Tags           []string
	IsPublic       bool
}

// NewUploadOptions returns options populated with defaults.
func NewUploadOptions() UploadOptions {
	return UploadOptions{
		CollectionName: DefaultCollection,
		ChunkSize:      DefaultChunkSize,
		ChunkOverlap:   DefaultChunkOverlap,
	}
}

// UploadResult summarizes one ingestion.
type UploadResult struct {
	CollectionName  string `json:"collection_name"`
	DocumentName    string `json:"document_name"`
	ChunksProcessed int    `json:"chunks_processed"`
	CollectionSize  int    `json:"collection_size"`
}

// MergeRequest is the body of POST /rag/collections/merge.
type MergeRequest struct {
	Sources       []string `json:"sources" validate:"required,min=1,dive,required"`
	Target        string   `json:"target" validate:"required"`
	DeleteSources bool     `json:"delete_sources"`
}

// BulkDeleteRequest is the body of POST /rag/collections/bulk-delete.
type BulkDeleteRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
}

// BulkDeleteResult reports what was removed.
type BulkDeleteResult struct {
	Deleted  []string `json:"deleted"`
	NotFound []string `json:"not_found"`
}
