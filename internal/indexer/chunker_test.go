package indexer

import (
	"reflect"
	"strings"
	"testing"
)

func TestChunker_Split(t *testing.T) {
	a := strings.Repeat("a", 40)
	b := strings.Repeat("b", 40)
	c := strings.Repeat("c", 40)
	text := a + "\n\n" + b + "\n  \n" + c

	tests := []struct {
		name    string
		size    int
		overlap int
		want    []string
	}{
		{
			name: "all fits in one chunk",
			size: 1000, overlap: 200,
			want: []string{a + "\n\n" + b + "\n\n" + c},
		},
		{
			name: "one paragraph per chunk without overlap",
			size: 50, overlap: 0,
			want: []string{a, b, c},
		},
		{
			name: "overlap carries the buffer tail",
			size: 50, overlap: 5,
			want: []string{a, "aaaaa\n\n" + b, "bbbbb\n\n" + c},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(text, tt.size, tt.overlap)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunker_SplitOversizedParagraphKeptWhole(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := NewChunker(100, 0).Split(long)
	if len(got) != 1 || got[0] != long {
		t.Errorf("oversized paragraph should be one chunk, got %d chunks", len(got))
	}
}

func TestChunker_SplitEmpty(t *testing.T) {
	for _, in := range []string{"", "   \n\t  ", "\n\n\n\n"} {
		if got := Split(in, 100, 10); len(got) != 0 {
			t.Errorf("Split(%q) = %q, want no chunks", in, got)
		}
	}
}

func TestChunker_SplitDeterministic(t *testing.T) {
	text := "one\n\ntwo two\n\nthree three three\n\nfour"
	first := Split(text, 10, 3)
	for i := 0; i < 5; i++ {
		if got := Split(text, 10, 3); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %q vs %q", i, got, first)
		}
	}
}

func TestChunker_SplitCountsRunes(t *testing.T) {
	// 30 three-byte runes fit a 30-character budget.
	p := strings.Repeat("日", 30)
	got := Split(p+"\n\n"+p, 60, 0)
	if len(got) != 1 {
		t.Errorf("expected one chunk measured in runes, got %d", len(got))
	}
}
