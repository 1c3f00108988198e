// Package indexer turns uploaded documents into collection chunks.
package indexer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/playground/pkg/utils"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

const paragraphSep = "\n\n"

// Chunker splits text into paragraph-aligned chunks with a character overlap.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split is shorthand for NewChunker(chunkSize, chunkOverlap).Split(text).
func Split(text string, chunkSize, chunkOverlap int) []string {
	return NewChunker(chunkSize, chunkOverlap).Split(text)
}

// Split accumulates paragraphs into a buffer until the next one would push it
// past chunkSize, then seals the trimmed buffer and starts the next one with
// the buffer's last chunkOverlap characters. A paragraph longer than chunkSize
// is kept whole. Whitespace-only input yields no chunks.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	current := ""
	for _, paragraph := range paragraphBreak.Split(text, -1) {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(paragraph) > c.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current))
			current = utils.LastRunes(current, c.chunkOverlap) + paragraphSep + paragraph
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current += paragraphSep + paragraph
		}
	}
	if last := strings.TrimSpace(current); last != "" {
		chunks = append(chunks, last)
	}
	return chunks
}
