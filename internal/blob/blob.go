// Package blob reads and writes the word-addressed little-endian
// configuration blobs consumed at initialisation.
package blob

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const WordSize = 4

var ErrShortBlob = errors.New("configuration blob too short")

// Cursor is an immutable read position within a blob. Every read returns
// the value together with the advanced cursor; the receiver is unchanged.
type Cursor struct {
	buf []byte
	off int
}

func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf}
}

// Offset is the byte offset of the cursor from the start of the blob.
func (c Cursor) Offset() int {
	return c.off
}

// Remaining is the number of unread bytes.
func (c Cursor) Remaining() int {
	return len(c.buf) - c.off
}

func (c Cursor) need(n int, what string) error {
	if c.off+n > len(c.buf) {
		return fmt.Errorf("%w: reading %s at offset %d needs %d bytes, %d left", ErrShortBlob, what, c.off, n, c.Remaining())
	}
	return nil
}

func (c Cursor) ReadU32() (uint32, Cursor, error) {
	if err := c.need(WordSize, "word"); err != nil {
		return 0, c, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off:])
	return v, Cursor{buf: c.buf, off: c.off + WordSize}, nil
}

func (c Cursor) ReadI32() (int32, Cursor, error) {
	v, next, err := c.ReadU32()
	return int32(v), next, err
}

// ReadHalfwordPair reads one word and splits it into its low and high
// 16-bit halves.
func (c Cursor) ReadHalfwordPair() (lo, hi uint16, next Cursor, err error) {
	v, next, err := c.ReadU32()
	if err != nil {
		return 0, 0, c, err
	}
	return uint16(v), uint16(v >> 16), next, nil
}

// ReadI16s reads n packed signed halfwords and then skips padding up to the
// next word boundary.
func (c Cursor) ReadI16s(n int) ([]int16, Cursor, error) {
	if n < 0 {
		return nil, c, fmt.Errorf("negative halfword count %d", n)
	}
	size := 2 * n
	if err := c.need(size, "halfword array"); err != nil {
		return nil, c, err
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.buf[c.off+2*i:]))
	}
	next := Cursor{buf: c.buf, off: c.off + size}
	return out, next.Align(), nil
}

// Align advances the cursor to the next word boundary. Padding past the end
// of the blob is tolerated so a trailing odd-length table stays readable.
func (c Cursor) Align() Cursor {
	off := (c.off + WordSize - 1) &^ (WordSize - 1)
	if off > len(c.buf) {
		off = len(c.buf)
	}
	return Cursor{buf: c.buf, off: off}
}

// Skip advances by n words.
func (c Cursor) Skip(words int) (Cursor, error) {
	if err := c.need(words*WordSize, "padding"); err != nil {
		return c, err
	}
	return Cursor{buf: c.buf, off: c.off + words*WordSize}, nil
}
