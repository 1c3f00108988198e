package fileid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	id1 := Key("/foo/bar.txt")
	id2 := Key("/foo/bar.txt")
	if id1 != id2 {
		t.Errorf("same path should give same key: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) || len(id1) != len(prefix)+64 {
		t.Errorf("unexpected key shape: %q", id1)
	}
	if Key("/foo/baz.txt") == id1 {
		t.Error("different paths should give different keys")
	}
}

func TestKey_normalized(t *testing.T) {
	id1 := Key("/foo/bar")
	if id2 := Key("/foo/bar/"); id1 != id2 {
		t.Errorf("trailing slash should normalize: %q vs %q", id1, id2)
	}
	if id3 := Key("/foo/./bar"); id1 != id3 {
		t.Errorf("dot segment should normalize: %q vs %q", id1, id3)
	}
}

func TestContentVersion(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(a, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("same"), 0644); err != nil {
		t.Fatal(err)
	}
	va, err := ContentVersion(a)
	if err != nil {
		t.Fatal(err)
	}
	vb, _ := ContentVersion(b)
	if va != vb {
		t.Errorf("equal contents should share a version: %q vs %q", va, vb)
	}
	if err := os.WriteFile(b, []byte("changed"), 0644); err != nil {
		t.Fatal(err)
	}
	if vb2, _ := ContentVersion(b); vb2 == va {
		t.Error("changed contents should change the version")
	}
	if _, err := ContentVersion(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}
