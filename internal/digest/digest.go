// Package digest computes a fast, non-cryptographic content identifier for
// file data as it streams through the codec.
package digest

import "github.com/cespare/xxhash/v2"

// Writer accumulates a running xxhash64 of everything written to it.
// Construct with New; the zero value's hash state is not initialized.
type Writer struct {
	h     xxhash.Digest
	taken bool
}

func New() *Writer {
	w := &Writer{}
	w.h.Reset()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the digest of everything written so far. It may be called
// more than once; the hash state is not consumed.
func (w *Writer) Sum() uint64 {
	w.taken = true
	return w.h.Sum64()
}

// Taken reports whether Sum has been called at least once.
func (w *Writer) Taken() bool { return w.taken }
