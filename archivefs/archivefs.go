// Package archivefs builds a random-access io/fs.FS view over a USTAR
// archive, so callers that already have the whole archive behind an
// io.ReaderAt (a file, or a downloaded blob) can read individual members
// without re-parsing the stream from the start each time.
package archivefs

import (
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/blockwise/ustar"
	"github.com/blockwise/ustar/internal/entrycache"
	"github.com/blockwise/ustar/internal/entryindex"
)

// Build parses the entire archive behind r and records every entry's
// location in idx. It must run to completion before New is called against
// the same index.
func Build(r io.ReaderAt, idx *entryindex.Index) error {
	var parser ustar.Parser
	var block [ustar.BlockSize]byte
	var off int64

	var cur ustar.Header
	var contentOff int64
	committed := true // no entry in progress yet

	for {
		n, err := r.ReadAt(block[:], off)
		if n < len(block) {
			if err == io.EOF && n == 0 {
				break
			}
			return fmt.Errorf("archivefs: short read at offset %d: %w", off, err)
		}
		off += int64(n)

		tok, ok, err := parser.Write(block[:])
		if err != nil {
			return fmt.Errorf("archivefs: %w", err)
		}
		if !ok {
			continue
		}

		switch tok.Kind {
		case ustar.TokenHeader:
			cur, contentOff, committed = tok.Header, off, false
			if cur.Kind == ustar.KindDirectory {
				if err := finishEntry(idx, cur, contentOff); err != nil {
					return err
				}
				committed = true
			} else if cur.Size == 0 {
				// no Data token will follow; commit now.
				if err := finishEntry(idx, cur, contentOff); err != nil {
					return err
				}
				committed = true
			}

		case ustar.TokenData:
			// contentOff already marks the start of this entry's content;
			// the header's declared size is enough to commit once, on the
			// first data block, regardless of how many more follow.
			if !committed {
				if err := finishEntry(idx, cur, contentOff); err != nil {
					return err
				}
				committed = true
			}

		case ustar.TokenEnd:
			return nil
		}
	}
	return nil
}

func finishEntry(idx *entryindex.Index, hdr ustar.Header, contentOff int64) error {
	e := entryindex.Entry{Kind: hdr.Kind, Mode: hdr.Mode, Mtime: hdr.Mtime}
	if hdr.Kind == ustar.KindFile {
		e.Offset, e.Size = contentOff, hdr.Size
	}
	return idx.Put(cleanPath(hdr.Path), e)
}

func cleanPath(p string) string {
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		p = "."
	}
	return path.Clean(p)
}

// node is one entry in the directory tree built by New. children is kept
// sorted by name so Open can binary-search a path segment. Metadata for a
// node is not stored here: it is fetched on demand through the FS's
// entrycache.Cache, so repeated lookups of the same hot path are served
// without a pebble read.
type node struct {
	name     string
	path     string
	isDir    bool
	children []*node
}

func (n *node) find(name string) *node {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].name >= name })
	if i < len(n.children) && n.children[i].name == name {
		return n.children[i]
	}
	return nil
}

// FS is a random-access view over a parsed archive. Member metadata is
// looked up through a cache rather than held in the tree itself, so the
// same FS can be shared by many callers without duplicating it.
type FS struct {
	r     io.ReaderAt
	cache *entrycache.Cache
	root  *node
}

// New builds an FS from every entry cache's underlying index has recorded.
// Build must have already populated that index from the same underlying
// archive r refers to.
func New(r io.ReaderAt, cache *entrycache.Cache) (*FS, error) {
	root := &node{name: ".", path: ".", isDir: true}
	byPath := map[string]*node{".": root}

	err := cache.Walk(func(p string, e entryindex.Entry) error {
		if p == "." {
			root.isDir = true
			return nil
		}
		parent := ensureDirRec(byPath, path.Dir(p))
		n := &node{name: path.Base(p), path: p, isDir: e.Kind == ustar.KindDirectory}
		parent.children = append(parent.children, n)
		byPath[p] = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortTree(root)
	return &FS{r: r, cache: cache, root: root}, nil
}

// entryFor resolves n's metadata through the cache. Directories implied by
// a deep path but never given their own archive entry (e.g. a file at
// "a/b/c.txt" with no explicit "a/" or "a/b/" header) have no cache entry;
// those fall back to a zero-value directory entry.
func (fsys *FS) entryFor(n *node) entryindex.Entry {
	if e, ok, err := fsys.cache.Get(n.path); err == nil && ok {
		return e
	}
	if n.isDir {
		return entryindex.Entry{Kind: ustar.KindDirectory}
	}
	return entryindex.Entry{}
}

func ensureDirRec(byPath map[string]*node, p string) *node {
	p = path.Clean(p)
	if n, ok := byPath[p]; ok {
		return n
	}
	parent := ensureDirRec(byPath, path.Dir(p))
	n := &node{name: path.Base(p), path: p, isDir: true}
	parent.children = append(parent.children, n)
	byPath[p] = n
	return n
}

func sortTree(n *node) {
	sort.Slice(n.children, func(i, j int) bool { return n.children[i].name < n.children[j].name })
	for _, c := range n.children {
		sortTree(c)
	}
}

func (fsys *FS) lookup(name string) (*node, error) {
	if name == "." {
		return fsys.root, nil
	}
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	n := fsys.root
	for _, part := range strings.Split(name, "/") {
		if !n.isDir {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		next := n.find(part)
		if next == nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
		}
		n = next
	}
	return n, nil
}

// Open implements io/fs.FS.
func (fsys *FS) Open(name string) (fs.File, error) {
	n, err := fsys.lookup(name)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return &openDir{fsys: fsys, node: n, path: name}, nil
	}
	e := fsys.entryFor(n)
	return &openFile{
		fsys: fsys,
		node: n,
		r:    io.NewSectionReader(fsys.r, e.Offset, e.Size),
	}, nil
}

// ReadDir implements io/fs.ReadDirFS.
func (fsys *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := fsys.lookup(name)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	out := make([]fs.DirEntry, len(n.children))
	for i, c := range n.children {
		out[i] = dirEntry{fsys, c}
	}
	return out, nil
}

// Stat implements io/fs.StatFS.
func (fsys *FS) Stat(name string) (fs.FileInfo, error) {
	n, err := fsys.lookup(name)
	if err != nil {
		return nil, err
	}
	return fileInfo{fsys, n}, nil
}

type fileInfo struct {
	fsys *FS
	n    *node
}

func (fi fileInfo) Name() string { return fi.n.name }
func (fi fileInfo) Size() int64  { return fi.fsys.entryFor(fi.n).Size }
func (fi fileInfo) Mode() fs.FileMode {
	m := fs.FileMode(fi.fsys.entryFor(fi.n).Mode) & fs.ModePerm
	if fi.n.isDir {
		m |= fs.ModeDir
	}
	return m
}
func (fi fileInfo) ModTime() time.Time { return time.Unix(fi.fsys.entryFor(fi.n).Mtime, 0).UTC() }
func (fi fileInfo) IsDir() bool        { return fi.n.isDir }
func (fi fileInfo) Sys() any           { return fi.fsys.entryFor(fi.n) }

type dirEntry struct {
	fsys *FS
	n    *node
}

func (d dirEntry) Name() string               { return d.n.name }
func (d dirEntry) IsDir() bool                { return d.n.isDir }
func (d dirEntry) Type() fs.FileMode          { return fileInfo{d.fsys, d.n}.Mode().Type() }
func (d dirEntry) Info() (fs.FileInfo, error) { return fileInfo{d.fsys, d.n}, nil }

type openFile struct {
	fsys *FS
	node *node
	r    *io.SectionReader
}

func (f *openFile) Stat() (fs.FileInfo, error) { return fileInfo{f.fsys, f.node}, nil }
func (f *openFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *openFile) Close() error               { return nil }

type openDir struct {
	fsys   *FS
	node   *node
	path   string
	offset int
}

func (d *openDir) Stat() (fs.FileInfo, error) { return fileInfo{d.fsys, d.node}, nil }
func (d *openDir) Close() error               { return nil }
func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.node.children[d.offset:]
	if n <= 0 {
		d.offset += len(rest)
		out := make([]fs.DirEntry, len(rest))
		for i, c := range rest {
			out[i] = dirEntry{d.fsys, c}
		}
		return out, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if n > len(rest) {
		n = len(rest)
	}
	d.offset += n
	out := make([]fs.DirEntry, n)
	for i, c := range rest[:n] {
		out[i] = dirEntry{d.fsys, c}
	}
	return out, nil
}
