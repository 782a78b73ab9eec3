// Package lut implements the fixed-point exponential decay lookup tables used
// by the timing rules. A table maps elapsed time, right-shifted by the table
// shift, to an STDP fixed-point multiplier; times past the end of the table
// are fully decayed.
package lut

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
)

// MaxShift bounds the time shift so index computation never discards the
// whole elapsed time.
const MaxShift = 31

var ErrEmpty = errors.New("decay table has no entries")

type DecayLUT struct {
	shift  uint32
	values []int16
}

// New builds a table from values already in STDP fixed point. The slice is
// copied.
func New(values []int16, shift uint32) (*DecayLUT, error) {
	if len(values) == 0 {
		return nil, ErrEmpty
	}
	if len(values) > 0xFFFF {
		return nil, fmt.Errorf("decay table size %d exceeds 16 bits", len(values))
	}
	if shift > MaxShift {
		return nil, fmt.Errorf("decay table shift %d exceeds %d", shift, MaxShift)
	}
	return &DecayLUT{shift: shift, values: append([]int16(nil), values...)}, nil
}

// Read decodes a self-describing table: a word holding size (low half) and
// shift (high half), followed by size packed halfwords padded to a word.
func Read(c blob.Cursor) (*DecayLUT, blob.Cursor, error) {
	size, shift, next, err := c.ReadHalfwordPair()
	if err != nil {
		return nil, c, fmt.Errorf("read decay table header: %w", err)
	}
	return ReadSized(next, int(size), uint32(shift))
}

// ReadSized decodes a table whose size and shift are supplied by the caller.
// Lookup semantics are identical to Read.
func ReadSized(c blob.Cursor, size int, shift uint32) (*DecayLUT, blob.Cursor, error) {
	values, next, err := c.ReadI16s(size)
	if err != nil {
		return nil, c, fmt.Errorf("read decay table values: %w", err)
	}
	table, err := New(values, shift)
	if err != nil {
		return nil, c, err
	}
	return table, next, nil
}

// Lookup returns the multiplier for elapsed time t, or 0 when t is past the
// end of the table.
func (l *DecayLUT) Lookup(t uint32) int32 {
	idx := t >> l.shift
	if idx >= uint32(len(l.values)) {
		return 0
	}
	return int32(l.values[idx])
}

// Decay multiplies value by the multiplier for elapsed time t.
func (l *DecayLUT) Decay(value int32, t uint32) int32 {
	return fixed.Mul16x16(value, l.Lookup(t))
}

func (l *DecayLUT) Size() int {
	return len(l.values)
}

func (l *DecayLUT) Shift() uint32 {
	return l.shift
}

// Values returns a copy of the table entries.
func (l *DecayLUT) Values() []int16 {
	return append([]int16(nil), l.values...)
}

// Monotone reports whether the entries never increase.
func (l *DecayLUT) Monotone() bool {
	for i := 1; i < len(l.values); i++ {
		if l.values[i] > l.values[i-1] {
			return false
		}
	}
	return true
}

// Encode writes the self-describing layout.
func (l *DecayLUT) Encode(w *blob.Writer) {
	w.PutHalfwordPair(uint16(len(l.values)), uint16(l.shift))
	l.EncodeValues(w)
}

// EncodeValues writes only the entries, for the externally-sized layout.
func (l *DecayLUT) EncodeValues(w *blob.Writer) {
	w.PutI16s(l.values)
}

// Generate builds exp(-t/tau) for t = (i << shift) * timestep, in STDP fixed
// point. tau and timestep share a unit. A non-positive tau yields an
// impulse: One at index 0 and zero afterwards.
func Generate(tau, timestep float32, size int, shift uint32) (*DecayLUT, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	if timestep <= 0 {
		return nil, fmt.Errorf("timestep must be > 0, got %v", timestep)
	}
	values := make([]int16, size)
	for i := range values {
		if tau <= 0 {
			if i == 0 {
				values[i] = int16(fixed.One)
			}
			continue
		}
		elapsed := float32(uint64(i)<<shift) * timestep
		v := math32.Round(math32.Exp(-elapsed/tau) * float32(fixed.One))
		values[i] = int16(fixed.Clamp(int32(v), 0, fixed.One))
	}
	return New(values, shift)
}
