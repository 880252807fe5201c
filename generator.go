package ustar

import "fmt"

// paxHeaderSentinelName is the advisory name this codec writes into an
// extended header's own name field. Real readers recover the long path
// from the PAX payload, not from this field; it is purely advisory, kept
// for compatibility with tools that print it.
const paxHeaderSentinelName = "./PaxHeader"

type generatorState int

const (
	generatorHeader generatorState = iota
	generatorData
	generatorNull
	generatorEnded
)

func (s generatorState) String() string {
	switch s {
	case generatorHeader:
		return "header"
	case generatorData:
		return "data"
	case generatorNull:
		return "null"
	case generatorEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Generator turns a sequence of file, directory, and data operations into a
// stream of 512-byte blocks. It holds no file descriptors and does no I/O;
// callers drive it and drain produced blocks with Next. Internally it is a
// HEADER/DATA/NULL/ENDED state machine: HEADER accepts the next entry,
// DATA accepts that entry's content, NULL flushes any trailing partial
// block, and ENDED follows End.
type Generator struct {
	state     generatorState
	remaining int64 // bytes of file data still owed before the next header is legal

	buf    block
	buflen int // bytes already placed in buf, 0..blockSize

	pending []block
}

// State reports the generator's current state, chiefly for tests.
func (g *Generator) State() string { return g.state.String() }

// File begins a regular file entry. If stat.Size is zero the generator
// returns to the header state immediately; otherwise it enters the data
// state and the caller must supply exactly stat.Size bytes via Write before
// starting the next entry or calling End.
func (g *Generator) File(path string, stat FileStat) error {
	return g.beginEntry(KindFile, path, stat)
}

// Directory begins a directory entry. Directories never carry data; any
// non-zero stat.Size is rejected.
func (g *Generator) Directory(path string, stat FileStat) error {
	if stat.Size != 0 {
		return fmt.Errorf("%w: directory entry %q has non-zero size", ErrInvalidStat, path)
	}
	return g.beginEntry(KindDirectory, path, stat)
}

func (g *Generator) beginEntry(kind EntryKind, path string, stat FileStat) error {
	if g.state != generatorHeader {
		return fmt.Errorf("%w: cannot start entry %q while in %v state", ErrInvalidState, path, g.state)
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidFileName)
	}

	_, _, ok := splitPath(path)
	headerPath := path
	if !ok {
		payload := formatPAXRecord(paxRecordPath, path)
		var eb block
		if err := writeHeader(&eb, KindExtended, paxHeaderSentinelName, FileStat{Size: int64(len(payload))}); err != nil {
			return err
		}
		g.pushBlock(eb)
		g.pushPayload([]byte(payload))
		headerPath = "" // the real header's name is now only a fallback; leave it empty
	}

	var hb block
	if err := writeHeader(&hb, kind, headerPath, stat); err != nil {
		return err
	}
	g.pushBlock(hb)

	if kind == KindFile && stat.Size > 0 {
		g.state = generatorData
		g.remaining = stat.Size
	}
	return nil
}

// Write supplies file data for the entry most recently begun with File.
// It is an error to call Write outside the data state, or to supply more
// bytes than the entry's declared size.
func (g *Generator) Write(p []byte) (int, error) {
	if g.state != generatorData {
		return 0, fmt.Errorf("%w: Write called in %v state", ErrInvalidState, g.state)
	}
	if int64(len(p)) > g.remaining {
		return 0, fmt.Errorf("%w: write exceeds declared file size by %d bytes", ErrInvalidStat, int64(len(p))-g.remaining)
	}

	n := len(p)
	for len(p) > 0 {
		copied := copy(g.buf[g.buflen:], p)
		g.buflen += copied
		p = p[copied:]
		if g.buflen == blockSize {
			g.pushBlock(g.buf)
			g.buf.reset()
			g.buflen = 0
		}
	}

	g.remaining -= int64(n)
	if g.remaining == 0 {
		g.state = generatorNull
		if g.buflen > 0 {
			g.pushBlock(g.buf)
			g.buf.reset()
			g.buflen = 0
		}
		g.state = generatorHeader
	}
	return n, nil
}

// End closes the archive by writing the two all-zero blocks that mark its
// end. It is only legal from the header state — midway through a file's
// data is not a valid place to stop.
func (g *Generator) End() error {
	if g.state != generatorHeader {
		return fmt.Errorf("%w: End called in %v state", ErrInvalidState, g.state)
	}
	g.pushBlock(zeroBlock)
	g.pushBlock(zeroBlock)
	g.state = generatorEnded
	return nil
}

// Next returns a copy of the next produced block, if any, as exactly
// BlockSize bytes. ok is false when the internal queue is empty; the
// caller should perform another operation (File, Directory, Write, or End)
// before calling Next again.
func (g *Generator) Next() ([]byte, bool) {
	if len(g.pending) == 0 {
		return nil, false
	}
	b := g.pending[0]
	g.pending = g.pending[1:]
	out := make([]byte, blockSize)
	copy(out, b[:])
	return out, true
}

func (g *Generator) pushBlock(b block) { g.pending = append(g.pending, b) }

// pushPayload writes data as a sequence of blocks, zero-padding the final
// partial block, matching how file content is padded to a block boundary.
func (g *Generator) pushPayload(data []byte) {
	for len(data) > 0 {
		var b block
		n := copy(b[:], data)
		data = data[n:]
		g.pushBlock(b)
	}
}
