// Package synapse decodes the packed control words of plastic synaptic rows.
//
// A control word holds, from the least significant bit, the post-synaptic
// neuron index, the synapse type, the dendritic delay and the axonal delay.
// Field widths are fixed when the engine is initialised.
package synapse

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	// MaxAxonalDelayBits and MaxDendriticDelayBits bound the delay fields.
	MaxAxonalDelayBits    = 3
	MaxDendriticDelayBits = 8
)

var ErrLayout = errors.New("invalid control word layout")

// Layout holds the shift and mask pairs of the control word fields.
type Layout struct {
	IndexBits          uint32
	TypeBits           uint32
	DendriticDelayBits uint32
	AxonalDelayBits    uint32
}

// BitsFor returns ceil(log2(n)), the width needed to hold values below n.
func BitsFor(n int) uint32 {
	if n <= 1 {
		return 0
	}
	return uint32(bits.Len(uint(n - 1)))
}

// NewLayout derives field widths for nNeurons neurons and nTypes synapse
// types.
func NewLayout(nNeurons, nTypes int, dendriticDelayBits, axonalDelayBits uint32) (Layout, error) {
	if nNeurons <= 0 || nTypes <= 0 {
		return Layout{}, fmt.Errorf("%w: n_neurons=%d n_types=%d", ErrLayout, nNeurons, nTypes)
	}
	if dendriticDelayBits == 0 || dendriticDelayBits > MaxDendriticDelayBits {
		return Layout{}, fmt.Errorf("%w: dendritic delay bits %d", ErrLayout, dendriticDelayBits)
	}
	if axonalDelayBits > MaxAxonalDelayBits {
		return Layout{}, fmt.Errorf("%w: axonal delay bits %d", ErrLayout, axonalDelayBits)
	}
	l := Layout{
		IndexBits:          BitsFor(nNeurons),
		TypeBits:           BitsFor(nTypes),
		DendriticDelayBits: dendriticDelayBits,
		AxonalDelayBits:    axonalDelayBits,
	}
	if l.IndexBits+l.TypeBits+l.DendriticDelayBits+l.AxonalDelayBits > 32 {
		return Layout{}, fmt.Errorf("%w: %d bits exceed a word", ErrLayout, l.IndexBits+l.TypeBits+l.DendriticDelayBits+l.AxonalDelayBits)
	}
	return l, nil
}

func mask(width uint32) uint32 {
	return (1 << width) - 1
}

// TypeIndexBits is the width of the combined type and index fields.
func (l Layout) TypeIndexBits() uint32 {
	return l.IndexBits + l.TypeBits
}

// DelayMask masks a time into the dendritic delay range of the ring.
func (l Layout) DelayMask() uint32 {
	return mask(l.DendriticDelayBits)
}

func (l Layout) Index(control uint32) uint32 {
	return control & mask(l.IndexBits)
}

func (l Layout) Type(control uint32) uint32 {
	return (control >> l.IndexBits) & mask(l.TypeBits)
}

// TypeIndex is the combined (type << index_bits | index) field.
func (l Layout) TypeIndex(control uint32) uint32 {
	return control & mask(l.TypeIndexBits())
}

func (l Layout) DendriticDelay(control uint32) uint32 {
	return (control >> l.TypeIndexBits()) & mask(l.DendriticDelayBits)
}

func (l Layout) AxonalDelay(control uint32) uint32 {
	return (control >> (l.TypeIndexBits() + l.DendriticDelayBits)) & mask(l.AxonalDelayBits)
}

// Control is a decoded control word.
type Control struct {
	DendriticDelay uint32
	AxonalDelay    uint32
	Type           uint32
	Index          uint32
	TypeIndex      uint32
}

func (l Layout) Decode(control uint32) Control {
	return Control{
		DendriticDelay: l.DendriticDelay(control),
		AxonalDelay:    l.AxonalDelay(control),
		Type:           l.Type(control),
		Index:          l.Index(control),
		TypeIndex:      l.TypeIndex(control),
	}
}

// Encode packs c into a control word. Fields wider than the layout are
// truncated.
func (l Layout) Encode(c Control) uint32 {
	word := c.Index & mask(l.IndexBits)
	word |= (c.Type & mask(l.TypeBits)) << l.IndexBits
	word |= (c.DendriticDelay & mask(l.DendriticDelayBits)) << l.TypeIndexBits()
	word |= (c.AxonalDelay & mask(l.AxonalDelayBits)) << (l.TypeIndexBits() + l.DendriticDelayBits)
	return word
}

// RingBufferSize is the number of ring buffer slots the layout addresses.
func (l Layout) RingBufferSize() int {
	return 1 << (l.DendriticDelayBits + l.TypeIndexBits())
}

// RingIndex is the slot receiving a contribution that lands at time for
// the given combined type index.
func (l Layout) RingIndex(time, typeIndex uint32) uint32 {
	return ((time & l.DelayMask()) << l.TypeIndexBits()) | typeIndex
}
