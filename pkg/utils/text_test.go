package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("héllo wörld", 7); got != "héllo w..." {
		t.Errorf("runes: got %q", got)
	}
}

func TestLastRunes(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"abcdef", 3, "def"},
		{"abc", 10, "abc"},
		{"abc", 0, ""},
		{"çava", 3, "ava"},
	}
	for _, c := range cases {
		if got := LastRunes(c.in, c.n); got != c.want {
			t.Errorf("LastRunes(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}
