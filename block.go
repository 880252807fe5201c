// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ustar

// Package ustar implements a streaming USTAR/PAX tar codec with no
// filesystem dependency. See the Generator and Parser types.

const (
	blockSize = 512 // size of every block on the wire

	nameSize   = 100 // max length of the name field
	prefixSize = 155 // max length of the USTAR prefix field

	magicUSTAR, versionUSTAR = "ustar\x00", "00"
)

// BlockSize is the fixed size of every block on the wire. Generator.Next
// and Parser.Write exchange blocks of exactly this many bytes.
const BlockSize = blockSize

// block is one 512-byte unit of a tar stream. Offsets below are byte
// offsets from the start of block.
type block [blockSize]byte

func (b *block) name() []byte      { return b[0:][:100] }
func (b *block) mode() []byte      { return b[100:][:8] }
func (b *block) uid() []byte       { return b[108:][:8] }
func (b *block) gid() []byte       { return b[116:][:8] }
func (b *block) size() []byte      { return b[124:][:12] }
func (b *block) mtime() []byte     { return b[136:][:12] }
func (b *block) chksum() []byte    { return b[148:][:8] }
func (b *block) typeflag() []byte  { return b[156:][:1] }
func (b *block) linkname() []byte  { return b[157:][:100] }
func (b *block) magic() []byte     { return b[257:][:6] }
func (b *block) version() []byte   { return b[263:][:2] }
func (b *block) uname() []byte     { return b[265:][:32] }
func (b *block) gname() []byte     { return b[297:][:32] }
func (b *block) devmajor() []byte  { return b[329:][:8] }
func (b *block) devminor() []byte  { return b[337:][:8] }
func (b *block) prefix() []byte    { return b[345:][:155] }

var zeroBlock block

func (b *block) reset() { *b = block{} }

func (b *block) isZero() bool { return *b == zeroBlock }

// computeChecksum sums every byte of the block, treating the checksum
// field itself as eight ASCII spaces — the USTAR convention that makes the
// checksum computable before it is known.
func (b *block) computeChecksum() int64 {
	var sum int64
	for i, c := range b {
		if 148 <= i && i < 156 {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// setChecksum writes the block's own checksum field. The checksum field is
// special in that it is terminated by a NUL then a space, not the usual
// trailing-NUL convention used by the other octal fields.
func (b *block) setChecksum() {
	field := b.chksum()
	var f formatter
	f.formatOctal(field[:7], b.computeChecksum())
	field[7] = ' '
}

// Type flags recognized by this package. Other USTAR/GNU type flags (hard
// links, symlinks, device nodes, sparse files, ...) are out of scope.
const (
	typeRegular   = '0'
	typeDirectory = '5'
	typeExtended  = 'x'
)
