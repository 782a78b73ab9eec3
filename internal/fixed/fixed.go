// Package fixed holds the integer fixed-point arithmetic shared by the
// plasticity engine. Traces and decay multipliers use the STDP format with
// eleven fractional bits; configuration values use S16.15 accum.
package fixed

import "golang.org/x/exp/constraints"

const (
	// STDPFixedPoint is the number of fractional bits of traces and
	// decay multipliers.
	STDPFixedPoint = 11
	// One is 1.0 in STDP fixed point.
	One int32 = 1 << STDPFixedPoint

	// AccumFractionalBits is the number of fractional bits of S16.15 values.
	AccumFractionalBits = 15
	// AccumOne is 1.0 in S16.15.
	AccumOne int32 = 1 << AccumFractionalBits
)

// Mul16x16 multiplies two STDP fixed-point values.
func Mul16x16(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> STDPFixedPoint)
}

// MulShift multiplies a by b and shifts the product right by shift bits.
func MulShift(a, b int32, shift uint32) int32 {
	return int32((int64(a) * int64(b)) >> shift)
}

// AccumToSTDP converts an S16.15 value to STDP fixed point.
func AccumToSTDP(v int32) int32 {
	return v >> (AccumFractionalBits - STDPFixedPoint)
}

// FromFloat converts f to a fixed-point value with the given fractional bits,
// rounding half away from zero.
func FromFloat(f float64, fractionalBits uint) int32 {
	scaled := f * float64(int64(1)<<fractionalBits)
	if scaled < 0 {
		return int32(scaled - 0.5)
	}
	return int32(scaled + 0.5)
}

// ToFloat converts a fixed-point value with the given fractional bits.
func ToFloat(v int32, fractionalBits uint) float64 {
	return float64(v) / float64(int64(1)<<fractionalBits)
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Abs returns |v|; math.MinInt32 saturates to math.MaxInt32.
func Abs(v int32) int32 {
	if v >= 0 {
		return v
	}
	if v == -1<<31 {
		return 1<<31 - 1
	}
	return -v
}

// Saturation reports the direction in which SaturatingAdd clamped.
type Saturation int

const (
	NoSaturation Saturation = iota
	Overflow
	Underflow
)

// SaturatingAdd adds a and b. When both operands share a sign and the
// wrapped sum does not, the result is clamped to the extreme in the
// direction of the operands.
func SaturatingAdd(a, b int32) (int32, Saturation) {
	sum := int32(uint32(a) + uint32(b))
	switch {
	case a >= 0 && b >= 0 && sum < 0:
		return 1<<31 - 1, Overflow
	case a < 0 && b < 0 && sum >= 0:
		return -1 << 31, Underflow
	default:
		return sum, NoSaturation
	}
}
