// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ustar

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryKind distinguishes the three header shapes this codec emits and
// parses.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
	KindExtended
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// FileStat carries the optional metadata attached to a File or Directory
// entry. Every field defaults to its zero value when omitted.
type FileStat struct {
	Size  int64 // non-negative, <= maxSize
	Mode  uint32
	Mtime int64 // seconds since Unix epoch, <= maxSize
	Uid   int   // <= maxID
	Gid   int   // <= maxID
	Uname string
	Gname string
}

// Field width limits, dictated by the USTAR octal field sizes in block.go.
const (
	maxSize = 1<<33 - 1 // 11 octal digits
	maxID   = 1<<21 - 1 // 7 octal digits
	maxName = 32        // uname/gname
)

func (s FileStat) validate() error {
	if s.Size < 0 || s.Size > maxSize {
		return fmt.Errorf("%w: size %d out of range", ErrInvalidStat, s.Size)
	}
	if s.Mtime < 0 || s.Mtime > maxSize {
		return fmt.Errorf("%w: mtime %d out of range", ErrInvalidStat, s.Mtime)
	}
	if s.Uid < 0 || s.Uid > maxID {
		return fmt.Errorf("%w: uid %d out of range", ErrInvalidStat, s.Uid)
	}
	if s.Gid < 0 || s.Gid > maxID {
		return fmt.Errorf("%w: gid %d out of range", ErrInvalidStat, s.Gid)
	}
	if len(s.Uname) > maxName {
		return fmt.Errorf("%w: uname longer than %d bytes", ErrInvalidStat, maxName)
	}
	if len(s.Gname) > maxName {
		return fmt.Errorf("%w: gname longer than %d bytes", ErrInvalidStat, maxName)
	}
	return nil
}

// Header is the decoded form of a USTAR header block, as returned by the
// Parser and consumed by the Generator's internal encode step.
type Header struct {
	Kind EntryKind
	Path string
	FileStat
}

// splitPath applies the USTAR 100/155 name/prefix split. ok is false when
// path is too long to encode in a plain USTAR header at all (> 255 bytes);
// the caller must precede such an entry with an extended header instead.
// The cut is made at a fixed byte position, not at a '/', and joinPath
// concatenates prefix and name with no separator; readers that join the
// two fields with a '/' (archive/tar among them) decode a different path
// for 101-255 byte names.
func splitPath(path string) (name, prefix string, ok bool) {
	switch {
	case len(path) <= nameSize:
		return path, "", true
	case len(path) <= nameSize+prefixSize:
		cut := len(path) - nameSize
		return path[cut:], path[:cut], true
	default:
		return "", "", false
	}
}

func joinPath(name, prefix string) string {
	if prefix == "" {
		return name
	}
	return prefix + name
}

// writeHeader encodes hdr into b. path must already have been resolved by
// the caller: for entries preceded by an extended header, pass "" so the
// normal header's name field is left empty, since the extended header's
// PAX payload is the path of record.
func writeHeader(b *block, kind EntryKind, path string, stat FileStat) error {
	if err := stat.validate(); err != nil {
		return err
	}

	name, prefix, ok := splitPath(path)
	if !ok {
		return fmt.Errorf("%w: path %d bytes exceeds 255-byte USTAR limit", ErrInvalidFileName, len(path))
	}

	b.reset()
	var f formatter
	f.formatString(b.name(), name)
	f.formatString(b.prefix(), prefix)
	f.formatOctal(b.mode(), int64(stat.Mode))
	f.formatOctal(b.uid(), int64(stat.Uid))
	f.formatOctal(b.gid(), int64(stat.Gid))
	f.formatOctal(b.mtime(), stat.Mtime)
	f.formatString(b.uname(), stat.Uname)
	f.formatString(b.gname(), stat.Gname)
	copy(b.magic(), magicUSTAR)
	copy(b.version(), versionUSTAR)

	switch kind {
	case KindFile:
		b.typeflag()[0] = typeRegular
		f.formatOctal(b.size(), stat.Size)
	case KindDirectory:
		b.typeflag()[0] = typeDirectory
		f.formatOctal(b.size(), 0)
	case KindExtended:
		b.typeflag()[0] = typeExtended
		f.formatOctal(b.size(), stat.Size)
	default:
		return fmt.Errorf("%w: unknown entry kind %v", ErrUndefinedBehaviour, kind)
	}

	if f.err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStat, f.err)
	}

	b.setChecksum()
	return nil
}

// readHeader decodes b into a Header. It validates the checksum and magic;
// any mismatch is ErrInvalidHeader.
func readHeader(b *block) (Header, error) {
	var p parser
	want := p.parseOctal(b.chksum())
	got := b.computeChecksum()
	if p.err != nil || want != got {
		return Header{}, fmt.Errorf("%w: checksum mismatch", ErrInvalidHeader)
	}
	if string(b.magic()) != magicUSTAR || string(b.version()) != versionUSTAR {
		return Header{}, fmt.Errorf("%w: bad magic/version", ErrInvalidHeader)
	}

	var hdr Header
	hdr.Path = joinPath(p.parseString(b.name()), p.parseString(b.prefix()))
	hdr.Mode = uint32(p.parseOctal(b.mode()))
	hdr.Uid = int(p.parseOctal(b.uid()))
	hdr.Gid = int(p.parseOctal(b.gid()))
	hdr.Mtime = p.parseOctal(b.mtime())
	hdr.Uname = p.parseString(b.uname())
	hdr.Gname = p.parseString(b.gname())
	hdr.Size = p.parseOctal(b.size())

	switch b.typeflag()[0] {
	case typeRegular, 0:
		hdr.Kind = KindFile
	case typeDirectory:
		hdr.Kind = KindDirectory
	case typeExtended:
		hdr.Kind = KindExtended
	default:
		return Header{}, fmt.Errorf("%w: unsupported typeflag %q", ErrInvalidHeader, b.typeflag()[0])
	}

	if p.err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidHeader, p.err)
	}
	return hdr, nil
}

// parser decodes the ASCII fields of a header block. Like the standard
// library's tar codec, once err is set every subsequent parse is a no-op,
// so callers can chain several parses and check err once at the end.
type parser struct{ err error }

// parseString trims a NUL-or-space-padded text field.
func (p *parser) parseString(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimRight(string(b), " ")
}

// parseOctal reads an ASCII octal field, stopping at the first NUL or
// space: some writers pad octal fields with NUL, others with space, and
// this parser accepts either.
func (p *parser) parseOctal(b []byte) int64 {
	if p.err != nil {
		return 0
	}
	end := len(b)
	for i, c := range b {
		if c == 0 || c == ' ' {
			end = i
			break
		}
	}
	s := strings.TrimSpace(string(b[:end]))
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 8, 64)
	if err != nil {
		p.err = fmt.Errorf("malformed octal field %q: %w", s, err)
		return 0
	}
	return n
}

// formatter encodes the ASCII fields of a header block.
type formatter struct{ err error }

func (f *formatter) formatString(b []byte, s string) {
	if f.err != nil {
		return
	}
	if len(s) > len(b) {
		f.err = fmt.Errorf("field value %q longer than %d bytes", s, len(b))
		return
	}
	clear(b)
	copy(b, s)
}

// formatOctal right-justifies x as zero-padded octal in b[:len(b)-1] and
// terminates with a single NUL, the standard USTAR octal field encoding.
func (f *formatter) formatOctal(b []byte, x int64) {
	if f.err != nil {
		return
	}
	if x < 0 {
		f.err = fmt.Errorf("negative value %d cannot be encoded as octal", x)
		return
	}
	s := strconv.FormatInt(x, 8)
	if len(s) > len(b)-1 {
		f.err = fmt.Errorf("value %d does not fit in %d octal digits", x, len(b)-1)
		return
	}
	clear(b)
	pad := len(b) - 1 - len(s)
	for i := 0; i < pad; i++ {
		b[i] = '0'
	}
	copy(b[pad:], s)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
