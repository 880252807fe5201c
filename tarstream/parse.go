package tarstream

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/blockwise/ustar"
	"github.com/blockwise/ustar/internal/digest"
)

// ParsingFacade re-chunks an arbitrary byte stream into the Parser's fixed
// block size and dispatches decoded entries to the On* callbacks. Content
// for paths matching any SkipContent glob is digested but never delivered
// through OnData, letting callers skim an archive's structure without
// paying for every file's payload.
type ParsingFacade struct {
	parser ustar.Parser
	buf    []byte

	skipContent []string

	curHeader ustar.Header
	curSkip   bool
	curDigest *digest.Writer

	ended bool

	// OnFile is called once per file entry, before any of its OnData
	// calls. OnDirectory is called once per directory entry. OnData may
	// be called zero or more times with successive slices of a file's
	// content. OnFileEnd is called once a file's content (if any) has
	// been fully delivered, with its content digest. OnEnd is called
	// once, when the end-of-archive marker is reached.
	OnFile      func(hdr ustar.Header)
	OnDirectory func(hdr ustar.Header)
	OnData      func(hdr ustar.Header, data []byte)
	OnFileEnd   func(hdr ustar.Header, digest uint64)
	OnEnd       func()
}

// NewParsingFacade returns a facade that skips delivering content for any
// path matched by one of the given doublestar glob patterns.
func NewParsingFacade(skipContent []string) *ParsingFacade {
	return &ParsingFacade{skipContent: skipContent}
}

// Write feeds the next slice of archive bytes into the facade. It may be
// called with chunks of any size; internally they are re-chunked to the
// codec's fixed block size.
func (f *ParsingFacade) Write(p []byte) error {
	if f.ended {
		return fmt.Errorf("%w: Write called after end of archive", ustar.ErrEndOfArchive)
	}
	f.buf = append(f.buf, p...)
	for len(f.buf) >= ustar.BlockSize {
		block := f.buf[:ustar.BlockSize]
		f.buf = f.buf[ustar.BlockSize:]
		if err := f.writeBlock(block); err != nil {
			return err
		}
	}
	return nil
}

func (f *ParsingFacade) writeBlock(block []byte) error {
	tok, ok, err := f.parser.Write(block)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	switch tok.Kind {
	case ustar.TokenHeader:
		if f.curDigest != nil {
			f.flushFileEnd()
		}
		f.curHeader = tok.Header
		f.curSkip = f.matchesSkip(tok.Header.Path)
		switch tok.Header.Kind {
		case ustar.KindDirectory:
			if f.OnDirectory != nil {
				f.OnDirectory(tok.Header)
			}
		default:
			f.curDigest = digest.New()
			if f.OnFile != nil {
				f.OnFile(tok.Header)
			}
			if tok.Header.Size == 0 {
				f.flushFileEnd()
			}
		}

	case ustar.TokenData:
		if f.curDigest != nil {
			f.curDigest.Write(tok.Data)
		}
		if !f.curSkip && f.OnData != nil {
			f.OnData(f.curHeader, tok.Data)
		}

	case ustar.TokenEnd:
		if f.curDigest != nil {
			f.flushFileEnd()
		}
		f.ended = true
		if f.OnEnd != nil {
			f.OnEnd()
		}
	}
	return nil
}

func (f *ParsingFacade) flushFileEnd() {
	if f.OnFileEnd != nil {
		f.OnFileEnd(f.curHeader, f.curDigest.Sum())
	}
	f.curDigest = nil
}

func (f *ParsingFacade) matchesSkip(path string) bool {
	for _, pattern := range f.skipContent {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

// Settled reports whether the end-of-archive marker has been reached.
// This is the facade's "data consumer waiting for the next chunk"
// suspension point in reverse: once Settled is true, no further Write
// calls are legal and every On* callback that will ever fire has fired.
func (f *ParsingFacade) Settled() bool { return f.ended }
