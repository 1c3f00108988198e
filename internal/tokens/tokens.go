// Package tokens estimates token counts for providers that do not report usage.
package tokens

import (
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the BPE encoding used for counting.
const Encoding = "cl100k_base"

// Counter counts the tokens of a text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken BPE encoding.
type TiktokenCounter struct {
	mu  sync.Mutex
	tkm *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding. The first call may fetch
// the encoding file, so callers should fall back to WordEstimator on error.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	tkm, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{tkm: tkm}, nil
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tkm.Encode(text, nil, nil))
}

// WordEstimator approximates tokens as words × 1.3, rounded down.
type WordEstimator struct{}

// Count returns the estimate for text.
func (WordEstimator) Count(text string) int {
	return EstimateWords(len(strings.Fields(text)))
}

// EstimateWords converts a word count to an approximate token count.
func EstimateWords(words int) int {
	return int(math.Floor(float64(words) * 1.3))
}
