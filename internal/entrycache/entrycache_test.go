package entrycache

import (
	"testing"

	"github.com/blockwise/ustar"
	"github.com/blockwise/ustar/internal/entryindex"
)

func TestGetConsultsCacheBeforeIndex(t *testing.T) {
	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()

	want := entryindex.Entry{Kind: ustar.KindFile, Offset: 512, Size: 5, Mode: 0o644}
	if err := idx.Put("a.txt", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c := New(idx, 16)

	got, ok, err := c.Get("a.txt")
	if err != nil || !ok {
		t.Fatalf("Get(a.txt) = %+v, %v, %v", got, ok, err)
	}
	if got != want {
		t.Fatalf("Get(a.txt) = %+v, want %+v", got, want)
	}

	if err := idx.Put("a.txt", entryindex.Entry{Kind: ustar.KindFile, Size: 99}); err != nil {
		t.Fatalf("Put (overwrite): %v", err)
	}
	got, ok, err = c.Get("a.txt")
	if err != nil || !ok || got != want {
		t.Fatalf("Get(a.txt) after overwrite = %+v, %v, %v, want cached %+v", got, ok, err, want)
	}
}

func TestGetMissingPath(t *testing.T) {
	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()

	c := New(idx, 16)
	_, ok, err := c.Get("nope.txt")
	if err != nil || ok {
		t.Fatalf("Get(nope.txt) = ok=%v, err=%v, want ok=false, err=nil", ok, err)
	}
}

func TestWalkReadsThroughToIndex(t *testing.T) {
	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()

	if err := idx.Put("a.txt", entryindex.Entry{Kind: ustar.KindFile, Size: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Put("b.txt", entryindex.Entry{Kind: ustar.KindFile, Size: 2}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	c := New(idx, 16)
	var seen []string
	if err := c.Walk(func(path string, e entryindex.Entry) error {
		seen = append(seen, path)
		return nil
	}); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(seen) != 2 || seen[0] != "a.txt" || seen[1] != "b.txt" {
		t.Fatalf("Walk visited %v, want [a.txt b.txt]", seen)
	}
}
