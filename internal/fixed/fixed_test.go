package fixed

import (
	"math"
	"testing"
)

func TestMul16x16(t *testing.T) {
	cases := []struct {
		a, b, want int32
	}{
		{One, One, One},
		{One / 2, One, One / 2},
		{One / 2, One / 2, One / 4},
		{-One, One / 2, -One / 2},
		{0, 12345, 0},
	}
	for _, tc := range cases {
		if got := Mul16x16(tc.a, tc.b); got != tc.want {
			t.Fatalf("Mul16x16(%d, %d)=%d want=%d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestMulShiftUsesWideProduct(t *testing.T) {
	if got := MulShift(math.MaxInt32, 4, 4); got != 536870911 {
		t.Fatalf("unexpected wide product: %d", got)
	}
	if got := MulShift(500, 50, 0); got != 25000 {
		t.Fatalf("MulShift(500, 50, 0)=%d want=25000", got)
	}
}

func TestSaturatingAdd(t *testing.T) {
	cases := []struct {
		name string
		a, b int32
		want int32
		sat  Saturation
	}{
		{"plain", 10, 20, 30, NoSaturation},
		{"mixed signs never saturate", math.MaxInt32, math.MinInt32, -1, NoSaturation},
		{"overflow", math.MaxInt32, 1, math.MaxInt32, Overflow},
		{"underflow", math.MinInt32, -1, math.MinInt32, Underflow},
		{"large overflow", math.MaxInt32 - 5, math.MaxInt32 - 5, math.MaxInt32, Overflow},
		{"zero boundary", math.MaxInt32, 0, math.MaxInt32, NoSaturation},
	}
	for _, tc := range cases {
		got, sat := SaturatingAdd(tc.a, tc.b)
		if got != tc.want || sat != tc.sat {
			t.Fatalf("%s: SaturatingAdd(%d, %d)=(%d,%d) want=(%d,%d)", tc.name, tc.a, tc.b, got, sat, tc.want, tc.sat)
		}
	}
}

func TestClampAndAbs(t *testing.T) {
	if got := Clamp[int32](5, 0, 3); got != 3 {
		t.Fatalf("clamp high: %d", got)
	}
	if got := Clamp[int32](-5, 0, 3); got != 0 {
		t.Fatalf("clamp low: %d", got)
	}
	if got := Clamp[uint16](2, 0, 3); got != 2 {
		t.Fatalf("clamp inside: %d", got)
	}
	if got := Abs(math.MinInt32); got != math.MaxInt32 {
		t.Fatalf("abs min: %d", got)
	}
}

func TestFloatConversions(t *testing.T) {
	if got := FromFloat(1.0, STDPFixedPoint); got != One {
		t.Fatalf("FromFloat(1)=%d", got)
	}
	if got := FromFloat(-0.5, AccumFractionalBits); got != -AccumOne/2 {
		t.Fatalf("FromFloat(-0.5)=%d", got)
	}
	if got := ToFloat(AccumOne/4, AccumFractionalBits); got != 0.25 {
		t.Fatalf("ToFloat=%f", got)
	}
	if got := AccumToSTDP(AccumOne); got != One {
		t.Fatalf("AccumToSTDP=%d", got)
	}
}
