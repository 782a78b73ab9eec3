package ring

import (
	"math"
	"testing"

	"stdpengine/internal/fixed"
)

func TestAddSaturatesAndCounts(t *testing.T) {
	b, err := New(4)
	if err != nil {
		t.Fatalf("new buffers: %v", err)
	}
	b.Add(1, math.MaxInt32-5)
	if sat := b.Add(1, 10); sat != fixed.Overflow {
		t.Fatalf("expected overflow, got %v", sat)
	}
	if b.Get(1) != math.MaxInt32 {
		t.Fatalf("expected clamp to max, got %d", b.Get(1))
	}
	b.Add(2, math.MinInt32+1)
	if sat := b.Add(2, -2); sat != fixed.Underflow {
		t.Fatalf("expected underflow, got %v", sat)
	}
	if b.Get(2) != math.MinInt32 {
		t.Fatalf("expected clamp to min, got %d", b.Get(2))
	}
	if b.Overflows() != 1 || b.Underflows() != 1 {
		t.Fatalf("unexpected counters: over=%d under=%d", b.Overflows(), b.Underflows())
	}
	if sat := b.Add(3, -7); sat != fixed.NoSaturation || b.Get(3) != -7 {
		t.Fatalf("unexpected plain add: %v %d", sat, b.Get(3))
	}
}

func TestDrainZeroesSlots(t *testing.T) {
	b, err := New(8)
	if err != nil {
		t.Fatalf("new buffers: %v", err)
	}
	b.Add(4, 3)
	b.Add(5, 9)
	got := b.Drain(4, 2)
	if got[0] != 3 || got[1] != 9 {
		t.Fatalf("unexpected drain: %v", got)
	}
	if b.Get(4) != 0 || b.Get(5) != 0 {
		t.Fatal("expected drained slots to be zero")
	}
	if _, err := New(0); err == nil {
		t.Fatal("expected size error")
	}
}
