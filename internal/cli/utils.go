// Package cli provides output and API helpers for the playground command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/playground/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const rule = "─────────────────────────────────────────────────────────"

// WriteRAGAnswer writes a query answer and its retrieved chunks to w.
func WriteRAGAnswer(w io.Writer, resp *models.RAGResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", strings.TrimSpace(resp.Answer))
	mr := resp.ModelResponse
	fmt.Fprintf(w, "[%s/%s] %d tokens in %.0fms (%s)\n", mr.Provider, mr.ModelName, mr.TotalTokens, mr.LatencyMS, mr.FinishReason)
	if len(resp.RetrievedDocuments) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\nSources (%d):\n", len(resp.RetrievedDocuments))
	for _, doc := range resp.RetrievedDocuments {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | %s (chunk %v)\n",
			doc.Rank, doc.SimilarityScore, doc.Metadata.Source(), doc.Metadata[models.MetaChunkIndex])
		fmt.Fprintf(w, "%s\n", TruncateWords(doc.Text, 40))
	}
	return nil
}

// WriteCollections writes a collection listing to w.
func WriteCollections(w io.Writer, infos []models.CollectionInfo, format OutputFormat) error {
	if format == OutputJSON {
		if infos == nil {
			infos = []models.CollectionInfo{}
		}
		return writeJSON(w, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(w, "No collections.")
		return nil
	}
	for _, c := range infos {
		fmt.Fprintf(w, "%-24s %4d docs %6d chunks  updated %s\n",
			c.Name, c.DocumentCount, c.ChunkCount, humanize.Time(c.LastUpdated))
		if c.Description != "" {
			fmt.Fprintf(w, "    %s\n", Truncate(c.Description, 80))
		}
		if len(c.Tags) > 0 {
			fmt.Fprintf(w, "    tags: %s\n", strings.Join(c.Tags, ", "))
		}
	}
	return nil
}

// WriteUpload writes the result of an ingestion.
func WriteUpload(w io.Writer, res *models.UploadResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Indexed %s: %d chunks into %q (%d total)\n",
		res.DocumentName, res.ChunksProcessed, res.CollectionName, res.CollectionSize)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen bytes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
