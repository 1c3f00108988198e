package models

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeCollectionName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"docs", "docs"},
		{"my docs!", "my_docs_"},
		{"a", "a__"},
		{"", "___"},
		{"日本", "___"},
		{strings.Repeat("x", 80), strings.Repeat("x", 63)},
		{"keep-this_one", "keep-this_one"},
	}
	for _, tt := range tests {
		got := SanitizeCollectionName(tt.in)
		if got != tt.want {
			t.Errorf("SanitizeCollectionName(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := SanitizeCollectionName(got); again != got {
			t.Errorf("SanitizeCollectionName not idempotent for %q: %q then %q", tt.in, got, again)
		}
	}
}

func TestErrorsWrapSentinels(t *testing.T) {
	if !errors.Is(NewNotFoundError("collection x"), ErrNotFound) {
		t.Error("NotFoundError should wrap ErrNotFound")
	}
	if !errors.Is(NewValidationError("top_k", "too big"), ErrValidation) {
		t.Error("ValidationError should wrap ErrValidation")
	}
	if !errors.Is(ErrNoBackendAvailable, ErrBackendUnavailable) {
		t.Error("ErrNoBackendAvailable should wrap ErrBackendUnavailable")
	}
	if !errors.Is(ErrUnsupportedFormat, ErrValidation) {
		t.Error("ErrUnsupportedFormat should wrap ErrValidation")
	}
	if got := NewNotFoundError("config abc").Error(); got != "config abc not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidatePromptRequest(t *testing.T) {
	req := NewPromptRequest()
	req.Prompt = "hello"
	if err := Validate(req); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	req.Temperature = 2.5
	err := Validate(req)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "temperature" {
		t.Errorf("expected temperature field, got %v", err)
	}

	req = NewPromptRequest()
	req.Prompt = "hi"
	req.Provider = "unknown"
	if err := Validate(req); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown provider should fail, got %v", err)
	}
}

func TestValidateRAGRequestTopK(t *testing.T) {
	req := NewRAGRequest()
	req.Query = "q"
	req.CollectionName = "docs"
	req.TopK = 21
	if err := Validate(req); !errors.Is(err, ErrValidation) {
		t.Errorf("top_k 21 should fail, got %v", err)
	}
	req.TopK = 20
	if err := Validate(req); err != nil {
		t.Errorf("top_k 20 should pass, got %v", err)
	}
}

func TestValidateUploadOptions(t *testing.T) {
	opts := NewUploadOptions()
	opts.ChunkSize = 50
	if err := Validate(opts); !errors.Is(err, ErrValidation) {
		t.Errorf("chunk_size 50 should fail, got %v", err)
	}
}

func TestInfoForCountsDistinctSources(t *testing.T) {
	c := &Collection{
		Name:   "docs",
		IDs:    []string{"1", "2", "3"},
		Chunks: []string{"a", "b", "c"},
		Metadatas: []ChunkMetadata{
			NewChunkMetadata("a.txt", 0, 1),
			NewChunkMetadata("a.txt", 1, 1),
			NewChunkMetadata("b.md", 0, 1),
		},
	}
	info := InfoFor(c)
	if info.DocumentCount != 2 || info.ChunkCount != 3 {
		t.Errorf("InfoFor = %+v", info)
	}
	if info.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}

	exp := ExportOf(c)
	if len(exp.Chunks) != 3 || exp.Chunks[2].ID != "3" || exp.Chunks[2].Metadata.Source() != "b.md" {
		t.Errorf("ExportOf = %+v", exp.Chunks)
	}
}

func TestCollectionMetaPatchApply(t *testing.T) {
	desc := "new"
	pub := true
	meta := CollectionMeta{Description: "old", Tags: []string{"x"}}
	got := CollectionMetaPatch{Description: &desc, IsPublic: &pub}.Apply(meta)
	if got.Description != "new" || !got.IsPublic || len(got.Tags) != 1 {
		t.Errorf("Apply = %+v", got)
	}
}

func TestPromptConfigHasTag(t *testing.T) {
	c := &PromptConfig{Tags: []string{"Coding", "qa"}}
	if !c.HasTag("coding") || c.HasTag("other") {
		t.Error("HasTag should match case-insensitively")
	}
}
