// Package ring holds the shared per-timestep input accumulators that plastic
// rows write their weights into.
package ring

import (
	"fmt"

	"stdpengine/internal/fixed"
)

// Buffers is a flat array of saturating accumulators indexed by
// (delayed time, synapse type, neuron index).
type Buffers struct {
	slots     []int32
	overflow  uint64
	underflow uint64
}

func New(size int) (*Buffers, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ring buffer size must be > 0, got %d", size)
	}
	return &Buffers{slots: make([]int32, size)}, nil
}

func (b *Buffers) Len() int {
	return len(b.slots)
}

// Add accumulates value into slot idx, clamping to the int32 extremes and
// counting the direction of any saturation.
func (b *Buffers) Add(idx uint32, value int32) fixed.Saturation {
	sum, sat := fixed.SaturatingAdd(b.slots[idx], value)
	switch sat {
	case fixed.Overflow:
		b.overflow++
	case fixed.Underflow:
		b.underflow++
	}
	b.slots[idx] = sum
	return sat
}

func (b *Buffers) Get(idx uint32) int32 {
	return b.slots[idx]
}

// Drain returns and zeroes the contiguous slots [start, start+n).
func (b *Buffers) Drain(start, n int) []int32 {
	out := make([]int32, n)
	copy(out, b.slots[start:start+n])
	clear(b.slots[start : start+n])
	return out
}

// Clear zeroes every slot. Saturation counters are kept.
func (b *Buffers) Clear() {
	clear(b.slots)
}

func (b *Buffers) Overflows() uint64 {
	return b.overflow
}

func (b *Buffers) Underflows() uint64 {
	return b.underflow
}
