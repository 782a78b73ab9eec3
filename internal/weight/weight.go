// Package weight implements the synaptic weight update algebra: scaled
// potentiation and depression increments applied to a weight clamped to the
// region configured for its synapse type.
package weight

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
)

// Kind selects the weight dependence of a region.
type Kind uint32

const (
	// SoftBound scales potentiation by the distance to Max and depression by
	// the distance to Min, so steps shrink near the bounds.
	SoftBound Kind = iota
	// Additive applies fixed-size steps and relies on the clamp.
	Additive
	// SoftBoundTwoTerm is SoftBound with a second (a3) term.
	SoftBoundTwoTerm
	// AdditiveTwoTerm is Additive with a second (a3) term.
	AdditiveTwoTerm
)

func (k Kind) String() string {
	switch k {
	case SoftBound:
		return "soft_bound"
	case Additive:
		return "additive"
	case SoftBoundTwoTerm:
		return "soft_bound_two_term"
	case AdditiveTwoTerm:
		return "additive_two_term"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ParseKind maps a Kind name back to its value.
func ParseKind(name string) (Kind, error) {
	for k := SoftBound; k <= AdditiveTwoTerm; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown weight kind %q", name)
}

// TwoTerm reports whether regions of this kind carry a3 parameters.
func (k Kind) TwoTerm() bool {
	return k == SoftBoundTwoTerm || k == AdditiveTwoTerm
}

func (k Kind) additive() bool {
	return k == Additive || k == AdditiveTwoTerm
}

func (k Kind) Valid() bool {
	return k <= AdditiveTwoTerm
}

// Region is the read-only per-synapse-type weight configuration.
type Region struct {
	Kind    Kind
	Min     int32
	Max     int32
	A2Plus  int32
	A2Minus int32
	A3Plus  int32
	A3Minus int32
	// Shift is the weight_multiply_right_shift applied by soft-bound scaling.
	Shift uint32
}

func (r Region) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("unsupported weight kind %d", uint32(r.Kind))
	}
	if r.Min > r.Max {
		return fmt.Errorf("min weight %d exceeds max weight %d", r.Min, r.Max)
	}
	if r.Shift > 31 {
		return fmt.Errorf("weight shift %d exceeds 31", r.Shift)
	}
	return nil
}

// DeriveShift is the stored shift asking ReadRegions to derive the shift
// from the type's ring buffer shift.
const DeriveShift uint32 = 0xFFFFFFFF

// ShiftForRingBuffer derives weight_multiply_right_shift from the
// ring-buffer-to-input left shift of a synapse type.
func ShiftForRingBuffer(ringBufferShift uint32) uint32 {
	if ringBufferShift >= 15 {
		return 0
	}
	return 16 - (ringBufferShift + 1)
}

// State is a weight being updated, bound to its region. Only Weight changes.
type State struct {
	Weight int32
	Region *Region
}

// NewState binds w to region, clamping it into range.
func NewState(w int32, region *Region) State {
	return State{Weight: fixed.Clamp(w, region.Min, region.Max), Region: region}
}

func (s State) scalePotentiation(a, amount int32) int32 {
	if s.Region.Kind.additive() {
		return fixed.Mul16x16(a, amount)
	}
	scale := fixed.MulShift(s.Region.Max-s.Weight, a, s.Region.Shift)
	return fixed.Mul16x16(scale, amount)
}

func (s State) scaleDepression(a, amount int32) int32 {
	if s.Region.Kind.additive() {
		return fixed.Mul16x16(a, amount)
	}
	scale := fixed.MulShift(s.Weight-s.Region.Min, a, s.Region.Shift)
	return fixed.Mul16x16(scale, amount)
}

func (s State) clamped(w int64) State {
	r := s.Region
	if w < int64(r.Min) {
		w = int64(r.Min)
	} else if w > int64(r.Max) {
		w = int64(r.Max)
	}
	s.Weight = int32(w)
	return s
}

// ApplyPotentiation moves the weight up by amount (STDP fixed point).
func (s State) ApplyPotentiation(amount int32) State {
	if amount == 0 {
		return s
	}
	return s.clamped(int64(s.Weight) + int64(s.scalePotentiation(s.Region.A2Plus, amount)))
}

// ApplyDepression moves the weight down by amount (STDP fixed point).
func (s State) ApplyDepression(amount int32) State {
	if amount == 0 {
		return s
	}
	return s.clamped(int64(s.Weight) - int64(s.scaleDepression(s.Region.A2Minus, amount)))
}

// ApplyPotentiation2 applies the a2 term scaled by amount and the a3 term
// scaled by amount2, summing both before the clamp.
func (s State) ApplyPotentiation2(amount, amount2 int32) State {
	if amount == 0 && amount2 == 0 {
		return s
	}
	delta := int64(0)
	if amount != 0 {
		delta += int64(s.scalePotentiation(s.Region.A2Plus, amount))
	}
	if amount2 != 0 {
		delta += int64(s.scalePotentiation(s.Region.A3Plus, amount2))
	}
	return s.clamped(int64(s.Weight) + delta)
}

// ApplyDepression2 is the depression counterpart of ApplyPotentiation2.
func (s State) ApplyDepression2(amount, amount2 int32) State {
	if amount == 0 && amount2 == 0 {
		return s
	}
	delta := int64(0)
	if amount != 0 {
		delta += int64(s.scaleDepression(s.Region.A2Minus, amount))
	}
	if amount2 != 0 {
		delta += int64(s.scaleDepression(s.Region.A3Minus, amount2))
	}
	return s.clamped(int64(s.Weight) - delta)
}

// Final returns the weight to persist.
func (s State) Final() int32 {
	return s.Weight
}

// ReadRegions decodes one region per synapse type. A stored DeriveShift is
// replaced by ShiftForRingBuffer of the matching ring-buffer shift; any other
// value, zero included, is used as is.
func ReadRegions(c blob.Cursor, kind Kind, nTypes int, ringBufferShifts []uint32) ([]Region, blob.Cursor, error) {
	if !kind.Valid() {
		return nil, c, fmt.Errorf("unsupported weight kind %d", uint32(kind))
	}
	regions := make([]Region, nTypes)
	for i := range regions {
		var (
			r      = Region{Kind: kind}
			err    error
			fields = []*int32{&r.Min, &r.Max, &r.A2Plus, &r.A2Minus}
		)
		if kind.TwoTerm() {
			fields = append(fields, &r.A3Plus, &r.A3Minus)
		}
		for _, f := range fields {
			if *f, c, err = c.ReadI32(); err != nil {
				return nil, c, fmt.Errorf("read weight region %d: %w", i, err)
			}
		}
		if r.Shift, c, err = c.ReadU32(); err != nil {
			return nil, c, fmt.Errorf("read weight region %d shift: %w", i, err)
		}
		if r.Shift == DeriveShift {
			if i >= len(ringBufferShifts) {
				return nil, c, fmt.Errorf("weight region %d: derived shift needs a ring buffer shift", i)
			}
			r.Shift = ShiftForRingBuffer(ringBufferShifts[i])
		}
		if err := r.Validate(); err != nil {
			return nil, c, fmt.Errorf("weight region %d: %w", i, err)
		}
		regions[i] = r
	}
	return regions, c, nil
}

// EncodeRegions writes regions in the layout read by ReadRegions.
func EncodeRegions(w *blob.Writer, regions []Region) {
	for _, r := range regions {
		w.PutI32(r.Min)
		w.PutI32(r.Max)
		w.PutI32(r.A2Plus)
		w.PutI32(r.A2Minus)
		if r.Kind.TwoTerm() {
			w.PutI32(r.A3Plus)
			w.PutI32(r.A3Minus)
		}
		w.PutU32(r.Shift)
	}
}
