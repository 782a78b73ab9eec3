package timing

import (
	"math"

	"stdpengine/internal/fixed"
	"stdpengine/internal/weight"
)

// Structure packs an UpdateState into the 32-bit plastic word of a synapse
// and back. Weights occupy the low 16 bits as an unsigned value.
type Structure interface {
	Name() string
	Decode(word uint32, region *weight.Region) UpdateState
	Encode(state UpdateState) uint32
}

// MaxStoredWeight is the largest weight a plastic word can hold.
const MaxStoredWeight = math.MaxUint16

func encodeWeight(state UpdateState) uint32 {
	return uint32(uint16(fixed.Clamp(state.Weight.Final(), 0, MaxStoredWeight)))
}

func decodeWeight(word uint32, region *weight.Region) weight.State {
	return weight.NewState(int32(uint16(word)), region)
}

// WeightOnly stores just the weight.
type WeightOnly struct{}

func (WeightOnly) Name() string { return "weight" }

func (WeightOnly) Decode(word uint32, region *weight.Region) UpdateState {
	return UpdateState{Weight: decodeWeight(word, region)}
}

func (WeightOnly) Encode(state UpdateState) uint32 {
	return encodeWeight(state)
}

// WeightAccumulator stores weight, a signed 8-bit accumulator and a phase:
// bits 0-15 weight, 16-23 accumulator, 24-25 phase.
type WeightAccumulator struct{}

func (WeightAccumulator) Name() string { return "weight_accumulator" }

func (WeightAccumulator) Decode(word uint32, region *weight.Region) UpdateState {
	return UpdateState{
		Weight:      decodeWeight(word, region),
		Accumulator: int32(int8(uint8(word >> 16))),
		Phase:       Phase((word >> 24) & 0x3),
	}
}

func (WeightAccumulator) Encode(state UpdateState) uint32 {
	acc := fixed.Clamp(state.Accumulator, math.MinInt8, math.MaxInt8)
	return encodeWeight(state) |
		uint32(uint8(int8(acc)))<<16 |
		uint32(state.Phase&0x3)<<24
}

// WeightEligibility stores weight and a signed 16-bit eligibility trace.
type WeightEligibility struct{}

func (WeightEligibility) Name() string { return "weight_eligibility" }

func (WeightEligibility) Decode(word uint32, region *weight.Region) UpdateState {
	return UpdateState{
		Weight:      decodeWeight(word, region),
		Eligibility: int32(int16(uint16(word >> 16))),
	}
}

func (WeightEligibility) Encode(state UpdateState) uint32 {
	return encodeWeight(state) | uint32(uint16(int16(clampTrace(state.Eligibility))))<<16
}

// StoredWeight extracts the weight from a plastic word of any structure.
func StoredWeight(word uint32) int32 {
	return int32(uint16(word))
}
