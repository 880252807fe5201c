package archivefs

import (
	"bytes"
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/blockwise/ustar"
	"github.com/blockwise/ustar/internal/entrycache"
	"github.com/blockwise/ustar/internal/entryindex"
)

func buildTestArchive(t *testing.T) *bytes.Reader {
	t.Helper()
	var g ustar.Generator
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building test archive: %v", err)
		}
	}
	must(g.Directory("docs/", ustar.FileStat{Mode: 0o755}))
	must(g.File("docs/readme.txt", ustar.FileStat{Size: 5, Mode: 0o644}))
	_, err := g.Write([]byte("hello"))
	must(err)
	must(g.File("top.txt", ustar.FileStat{Size: 3, Mode: 0o644}))
	_, err = g.Write([]byte("top"))
	must(err)
	must(g.End())

	var buf bytes.Buffer
	for {
		b, ok := g.Next()
		if !ok {
			break
		}
		buf.Write(b)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestBuildAndOpen(t *testing.T) {
	r := buildTestArchive(t)

	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()

	if err := Build(r, idx); err != nil {
		t.Fatalf("Build: %v", err)
	}

	fsys, err := New(r, entrycache.New(idx, 16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f, err := fsys.Open("docs/readme.txt")
	if err != nil {
		t.Fatalf("Open(docs/readme.txt): %v", err)
	}
	defer f.Close()
	got, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("content = %q, want %q", got, "hello")
	}

	entries, err := fsys.ReadDir("docs")
	if err != nil {
		t.Fatalf("ReadDir(docs): %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "readme.txt" {
		t.Fatalf("ReadDir(docs) = %v", entries)
	}

	fi, err := fsys.Stat("top.txt")
	if err != nil {
		t.Fatalf("Stat(top.txt): %v", err)
	}
	if fi.Size() != 3 || fi.IsDir() {
		t.Fatalf("Stat(top.txt) = %+v", fi)
	}
}

func TestFSConformsToFSTestFS(t *testing.T) {
	r := buildTestArchive(t)
	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()
	if err := Build(r, idx); err != nil {
		t.Fatalf("Build: %v", err)
	}
	fsys, err := New(r, entrycache.New(idx, 16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := fstest.TestFS(fsys, "docs", "docs/readme.txt", "top.txt"); err != nil {
		t.Fatal(err)
	}
}

func TestOpenMissingPath(t *testing.T) {
	r := buildTestArchive(t)
	idx, err := entryindex.Open()
	if err != nil {
		t.Fatalf("entryindex.Open: %v", err)
	}
	defer idx.Close()
	if err := Build(r, idx); err != nil {
		t.Fatalf("Build: %v", err)
	}
	fsys, err := New(r, entrycache.New(idx, 16))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := fsys.Open("nope.txt"); !fs.IsNotExist(err) {
		t.Fatalf("got %v, want fs.ErrNotExist", err)
	}
}
