package keyword

import (
	"sort"
	"strings"
	"sync"
)

// TermDictionary is the vocabulary a SpellChecker corrects against.
type TermDictionary interface {
	GetAllTerms() ([]string, error)
	GetTermFrequency(term string) (int, error)
}

// Suggestion is one candidate correction for a term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker corrects query terms to the closest dictionary terms.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	minFreq        int
	maxSuggestions int

	mu    sync.RWMutex
	terms []string
	set   map[string]struct{}
	valid bool
}

// SpellCheckerOption configures a SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the largest edit distance considered a match.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms seen in fewer documents.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSpellChecker returns a checker over dict. The vocabulary is read lazily
// and re-read after Invalidate.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:     dict,
		maxDistance:    2,
		minFreq:        1,
		maxSuggestions: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invalidate drops the cached vocabulary; call after the dictionary changes.
func (s *SpellChecker) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

func (s *SpellChecker) refresh() error {
	s.mu.RLock()
	valid := s.valid
	s.mu.RUnlock()
	if valid {
		return nil
	}
	terms, err := s.dictionary.GetAllTerms()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	s.mu.Lock()
	s.terms, s.set, s.valid = terms, set, true
	s.mu.Unlock()
	return nil
}

// Suggest returns up to five corrections for term, best first. Known terms
// get no suggestions.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	if err := s.refresh(); err != nil {
		return nil
	}
	term = strings.ToLower(term)
	s.mu.RLock()
	_, known := s.set[term]
	terms := s.terms
	s.mu.RUnlock()
	if known {
		return nil
	}

	var out []Suggestion
	for _, candidate := range terms {
		c := strings.ToLower(candidate)
		if diff := len([]rune(c)) - len([]rune(term)); diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := LevenshteinDistance(term, c)
		if d == 0 || d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(candidate)
		if err != nil || freq < s.minFreq {
			continue
		}
		out = append(out, Suggestion{
			Term:      c,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// Correct replaces every unknown term in query with its best suggestion and
// reports whether anything changed. Terms are lowercased.
func (s *SpellChecker) Correct(query string) (string, bool) {
	terms := strings.Fields(strings.ToLower(query))
	changed := false
	for i, t := range terms {
		if sug := s.Suggest(t); len(sug) > 0 {
			terms[i] = sug[0].Term
			changed = true
		}
	}
	return strings.Join(terms, " "), changed
}
