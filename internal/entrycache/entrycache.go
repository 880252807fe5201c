// Package entrycache wraps an entryindex.Index with a bounded admission
// cache, so repeatedly statting or opening the same handful of hot paths
// in a large archive does not cost a pebble lookup every time.
package entrycache

import (
	"hash/maphash"

	"github.com/dgryski/go-tinylfu"

	"github.com/blockwise/ustar/internal/entryindex"
)

var seed = maphash.MakeSeed()

func hashPath(path string) uint64 {
	return maphash.String(seed, path)
}

// Cache is a read-through cache in front of an Index.
type Cache struct {
	idx *entryindex.Index
	c   *tinylfu.T[string, entryindex.Entry]
}

// New returns a cache holding up to capacity entries, backed by idx.
func New(idx *entryindex.Index, capacity int) *Cache {
	return &Cache{
		idx: idx,
		c:   tinylfu.New[string, entryindex.Entry](capacity, capacity*10, hashPath),
	}
}

// Get returns the entry for path, consulting the cache before the index.
func (c *Cache) Get(path string) (entryindex.Entry, bool, error) {
	if e, ok := c.c.Get(path); ok {
		return e, true, nil
	}
	e, ok, err := c.idx.Get(path)
	if err != nil || !ok {
		return entryindex.Entry{}, ok, err
	}
	c.c.Add(path, e)
	return e, true, nil
}

// Walk calls fn for every indexed path in lexical order. It reads straight
// from the underlying index, since a one-time full scan gains nothing from
// the admission cache.
func (c *Cache) Walk(fn func(path string, e entryindex.Entry) error) error {
	return c.idx.Walk(fn)
}
