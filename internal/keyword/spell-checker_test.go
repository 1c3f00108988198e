package keyword

import (
	"errors"
	"testing"
)

type mockTermDictionary struct {
	terms map[string]int
	err   error
	calls int
}

func (m *mockTermDictionary) GetAllTerms() ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]string, 0, len(m.terms))
	for t := range m.terms {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTermDictionary) GetTermFrequency(term string) (int, error) {
	return m.terms[term], nil
}

func TestSpellChecker_Suggest(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{
		"contracts": 3, "contacts": 1, "research": 2, "law": 5,
	}}
	sc := NewSpellChecker(dict)

	got := sc.Suggest("contrcts")
	if len(got) == 0 || got[0].Term != "contracts" || got[0].Distance != 1 {
		t.Fatalf("Suggest(contrcts) = %+v", got)
	}
	if got := sc.Suggest("law"); len(got) != 0 {
		t.Errorf("known term should have no suggestions, got %+v", got)
	}
	if got := sc.Suggest("zzzzzzzz"); len(got) != 0 {
		t.Errorf("unrelated term: %+v", got)
	}
}

func TestSpellChecker_SuggestRanksByFrequency(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"cart": 1, "card": 9}}
	sc := NewSpellChecker(dict)
	got := sc.Suggest("carx")
	if len(got) != 2 || got[0].Term != "card" {
		t.Errorf("Suggest(carx) = %+v", got)
	}
}

func TestSpellChecker_Options(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"research": 1, "rare": 0}}
	sc := NewSpellChecker(dict, WithMaxDistance(1))
	if got := sc.Suggest("reserach"); len(got) != 0 {
		t.Errorf("distance 2 should be rejected with max 1: %+v", got)
	}
	sc = NewSpellChecker(dict, WithMinFrequency(1))
	if got := sc.Suggest("rara"); len(got) != 0 {
		t.Errorf("zero-frequency term should be ignored: %+v", got)
	}
}

func TestSpellChecker_Correct(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"legal": 2, "contracts": 1}}
	sc := NewSpellChecker(dict)

	got, changed := sc.Correct("Legal contrcts")
	if !changed || got != "legal contracts" {
		t.Errorf("Correct = %q, %v", got, changed)
	}
	got, changed = sc.Correct("legal")
	if changed || got != "legal" {
		t.Errorf("Correct(known) = %q, %v", got, changed)
	}
	if got, changed := sc.Correct(""); changed || got != "" {
		t.Errorf("Correct(empty) = %q, %v", got, changed)
	}
}

func TestSpellChecker_InvalidateRereads(t *testing.T) {
	dict := &mockTermDictionary{terms: map[string]int{"alpha": 1}}
	sc := NewSpellChecker(dict)
	sc.Suggest("alpah")
	sc.Suggest("alpah")
	if dict.calls != 1 {
		t.Errorf("vocabulary read %d times, want 1", dict.calls)
	}
	dict.terms["gamma"] = 1
	sc.Invalidate()
	if got := sc.Suggest("gamme"); len(got) != 1 || got[0].Term != "gamma" {
		t.Errorf("after Invalidate: %+v", got)
	}
	if dict.calls != 2 {
		t.Errorf("vocabulary read %d times, want 2", dict.calls)
	}
}

func TestSpellChecker_DictionaryError(t *testing.T) {
	sc := NewSpellChecker(&mockTermDictionary{err: errors.New("boom")})
	if got := sc.Suggest("x"); got != nil {
		t.Errorf("Suggest on failing dictionary = %+v", got)
	}
	if got, changed := sc.Correct("abc"); changed || got != "abc" {
		t.Errorf("Correct on failing dictionary = %q, %v", got, changed)
	}
}
