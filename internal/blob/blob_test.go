package blob

import (
	"errors"
	"testing"
)

func TestCursorReadsWordsWithoutMutatingReceiver(t *testing.T) {
	var w Writer
	w.PutU32(7)
	w.PutI32(-3)
	start := NewCursor(w.Bytes())

	v, next, err := start.ReadU32()
	if err != nil {
		t.Fatalf("read u32: %v", err)
	}
	if v != 7 || next.Offset() != 4 || start.Offset() != 0 {
		t.Fatalf("unexpected read: v=%d next=%d start=%d", v, next.Offset(), start.Offset())
	}
	s, end, err := next.ReadI32()
	if err != nil {
		t.Fatalf("read i32: %v", err)
	}
	if s != -3 || end.Remaining() != 0 {
		t.Fatalf("unexpected signed read: v=%d remaining=%d", s, end.Remaining())
	}
	if _, _, err := end.ReadU32(); !errors.Is(err, ErrShortBlob) {
		t.Fatalf("expected ErrShortBlob, got: %v", err)
	}
}

func TestHalfwordArraysArePaddedToWords(t *testing.T) {
	var w Writer
	w.PutI16s([]int16{1, -2, 3})
	w.PutU32(99)
	if w.Len() != 12 {
		t.Fatalf("unexpected blob length: %d", w.Len())
	}

	values, c, err := NewCursor(w.Bytes()).ReadI16s(3)
	if err != nil {
		t.Fatalf("read halfwords: %v", err)
	}
	if len(values) != 3 || values[0] != 1 || values[1] != -2 || values[2] != 3 {
		t.Fatalf("unexpected halfwords: %+v", values)
	}
	tail, _, err := c.ReadU32()
	if err != nil || tail != 99 {
		t.Fatalf("unexpected tail: %d err=%v", tail, err)
	}
}

func TestHalfwordPair(t *testing.T) {
	var w Writer
	w.PutHalfwordPair(0x1234, 0xBEEF)
	lo, hi, _, err := NewCursor(w.Bytes()).ReadHalfwordPair()
	if err != nil {
		t.Fatalf("read pair: %v", err)
	}
	if lo != 0x1234 || hi != 0xBEEF {
		t.Fatalf("unexpected pair: %x %x", lo, hi)
	}
}

func TestShortHalfwordArray(t *testing.T) {
	var w Writer
	w.PutU32(0)
	if _, _, err := NewCursor(w.Bytes()).ReadI16s(3); !errors.Is(err, ErrShortBlob) {
		t.Fatalf("expected ErrShortBlob, got: %v", err)
	}
}
