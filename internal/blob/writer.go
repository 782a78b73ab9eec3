package blob

import (
	"bytes"
	"encoding/binary"
)

// Writer builds a blob in the layout read by Cursor.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) PutU32(v uint32) {
	var word [WordSize]byte
	binary.LittleEndian.PutUint32(word[:], v)
	w.buf.Write(word[:])
}

func (w *Writer) PutI32(v int32) {
	w.PutU32(uint32(v))
}

func (w *Writer) PutHalfwordPair(lo, hi uint16) {
	w.PutU32(uint32(lo) | uint32(hi)<<16)
}

// PutI16s writes packed halfwords padded to a whole word.
func (w *Writer) PutI16s(values []int16) {
	var half [2]byte
	for _, v := range values {
		binary.LittleEndian.PutUint16(half[:], uint16(v))
		w.buf.Write(half[:])
	}
	if len(values)%2 == 1 {
		w.buf.Write([]byte{0, 0})
	}
}

func (w *Writer) Len() int {
	return w.buf.Len()
}

func (w *Writer) Bytes() []byte {
	return bytes.Clone(w.buf.Bytes())
}
