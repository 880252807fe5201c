// Package entryindex persists the offset, size, and metadata of every entry
// parsed out of an archive, so a random-access view of the archive can
// later seek straight to a file's content without re-scanning the stream.
// Entry has a Digest field, but archivefs.Build does not compute one: the
// entries it records carry a zero Digest.
// The index is backed by pebble, an embedded LSM-tree key-value store.
package entryindex

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"

	"github.com/blockwise/ustar"
)

// Entry records where one archive member's content lives and what shape
// it has, so archivefs can answer fs.Stat and fs.File.Read without
// re-parsing the archive.
type Entry struct {
	Kind   ustar.EntryKind
	Offset int64 // byte offset of content within the archive, 0 for directories
	Size   int64
	Mode   uint32
	Mtime  int64
	Digest uint64
}

// Index is an open handle to an entry index. The zero value is not usable;
// construct with Open.
type Index struct {
	db *pebble.DB
}

// Open creates an in-memory pebble index. Archives are commonly ephemeral
// (piped, generated on demand), so persistence to durable storage is the
// caller's choice, made by supplying a different vfs.FS-backed Open
// elsewhere; the default here favors the common case.
func Open() (*Index, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("entryindex: open: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the index's resources.
func (idx *Index) Close() error {
	if idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// Put records the entry for path, overwriting any prior entry.
func (idx *Index) Put(path string, e Entry) error {
	return idx.db.Set([]byte(path), encode(e), pebble.Sync)
}

// Get looks up the entry for path. ok is false if no such path was
// indexed.
func (idx *Index) Get(path string) (e Entry, ok bool, err error) {
	v, closer, err := idx.db.Get([]byte(path))
	if err == pebble.ErrNotFound {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("entryindex: get %q: %w", path, err)
	}
	defer closer.Close()
	e, err = decode(v)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Walk calls fn for every indexed path in lexical order, stopping early if
// fn returns an error.
func (idx *Index) Walk(fn func(path string, e Entry) error) error {
	it, err := idx.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("entryindex: walk: %w", err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		e, err := decode(it.Value())
		if err != nil {
			return err
		}
		if err := fn(string(it.Key()), e); err != nil {
			return err
		}
	}
	return it.Error()
}

const encodedSize = 1 + 8 + 8 + 4 + 8 + 8

func encode(e Entry) []byte {
	buf := make([]byte, encodedSize)
	buf[0] = byte(e.Kind)
	binary.BigEndian.PutUint64(buf[1:], uint64(e.Offset))
	binary.BigEndian.PutUint64(buf[9:], uint64(e.Size))
	binary.BigEndian.PutUint32(buf[17:], e.Mode)
	binary.BigEndian.PutUint64(buf[21:], uint64(e.Mtime))
	binary.BigEndian.PutUint64(buf[29:], e.Digest)
	return buf
}

func decode(buf []byte) (Entry, error) {
	if len(buf) != encodedSize {
		return Entry{}, fmt.Errorf("entryindex: corrupt record (%d bytes, want %d)", len(buf), encodedSize)
	}
	return Entry{
		Kind:   ustar.EntryKind(buf[0]),
		Offset: int64(binary.BigEndian.Uint64(buf[1:])),
		Size:   int64(binary.BigEndian.Uint64(buf[9:])),
		Mode:   binary.BigEndian.Uint32(buf[17:]),
		Mtime:  int64(binary.BigEndian.Uint64(buf[21:])),
		Digest: binary.BigEndian.Uint64(buf[29:]),
	}, nil
}
