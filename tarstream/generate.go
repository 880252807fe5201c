// Package tarstream re-chunks the ustar package's block-oriented codec into
// arbitrarily sized byte chunks, so callers that read from or write to a
// network connection or a pipe are not forced onto 512-byte boundaries.
// Both facades are cooperative generators: each has exactly one point
// where it reports "nothing ready yet" rather than blocking, driven
// synchronously by a single caller goroutine.
package tarstream

import (
	"fmt"

	"github.com/blockwise/ustar"
	"github.com/blockwise/ustar/internal/digest"
)

// GenerationFacade drives a Generator and re-chunks its block output into
// caller-sized pieces. The zero value is not usable; construct with
// NewGenerationFacade.
type GenerationFacade struct {
	gen       ustar.Generator
	chunkSize int
	pending   []byte
	finalized bool
}

// NewGenerationFacade returns a facade that yields chunks of chunkSize
// bytes (the final chunk of an archive may be shorter).
func NewGenerationFacade(chunkSize int) *GenerationFacade {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &GenerationFacade{chunkSize: chunkSize}
}

// AddFile begins and writes a complete file entry in one call and returns
// its content digest. data must have exactly len(data) == stat.Size bytes.
func (f *GenerationFacade) AddFile(path string, stat ustar.FileStat, data []byte) (uint64, error) {
	if f.finalized {
		return 0, fmt.Errorf("%w: AddFile after Finalize", ustar.ErrInvalidState)
	}
	if int64(len(data)) != stat.Size {
		return 0, fmt.Errorf("%w: data length %d does not match stat.Size %d", ustar.ErrInvalidStat, len(data), stat.Size)
	}

	if err := f.gen.File(path, stat); err != nil {
		return 0, err
	}

	d := digest.New()
	if len(data) > 0 {
		d.Write(data)
		if _, err := f.gen.Write(data); err != nil {
			return 0, err
		}
	}
	f.drain()
	return d.Sum(), nil
}

// AddDirectory adds a directory entry.
func (f *GenerationFacade) AddDirectory(path string, stat ustar.FileStat) error {
	if f.finalized {
		return fmt.Errorf("%w: AddDirectory after Finalize", ustar.ErrInvalidState)
	}
	if err := f.gen.Directory(path, stat); err != nil {
		return err
	}
	f.drain()
	return nil
}

// Finalize writes the end-of-archive marker. No further entries may be
// added afterward.
func (f *GenerationFacade) Finalize() error {
	if f.finalized {
		return fmt.Errorf("%w: Finalize called twice", ustar.ErrInvalidState)
	}
	if err := f.gen.End(); err != nil {
		return err
	}
	f.drain()
	f.finalized = true
	return nil
}

// drain pulls every block the Generator currently has ready and appends it
// to the re-chunking buffer.
func (f *GenerationFacade) drain() {
	for {
		b, ok := f.gen.Next()
		if !ok {
			return
		}
		f.pending = append(f.pending, b...)
	}
}

// YieldChunks returns the next chunk of output, if one is ready. This is
// the facade's one "producer waiting for work" suspension point: ok is
// false when less than a full chunk is buffered and the archive has not
// yet been finalized, meaning the caller must add more entries (or call
// Finalize) before another chunk can be produced.
func (f *GenerationFacade) YieldChunks() (chunk []byte, ok bool) {
	if len(f.pending) >= f.chunkSize {
		chunk, f.pending = f.pending[:f.chunkSize], f.pending[f.chunkSize:]
		return chunk, true
	}
	if f.finalized && len(f.pending) > 0 {
		chunk, f.pending = f.pending, nil
		return chunk, true
	}
	return nil, false
}

// Settled reports whether the facade has produced every byte it ever will.
func (f *GenerationFacade) Settled() bool {
	return f.finalized && len(f.pending) == 0
}
