package weight

import (
	"math/rand"
	"testing"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
)

func TestSoftBoundPotentiationScenario(t *testing.T) {
	region := Region{Kind: SoftBound, Min: 0, Max: 1000, A2Plus: 50, A2Minus: 50, Shift: 0}
	state := NewState(500, &region)

	next := state.ApplyPotentiation(fixed.One)
	want := int32(500 + 500*50)
	if want > region.Max {
		want = region.Max
	}
	if next.Weight != want {
		t.Fatalf("unexpected weight: got=%d want=%d", next.Weight, want)
	}
	for i := 0; i < 100; i++ {
		next = next.ApplyPotentiation(fixed.One)
		if next.Weight > region.Max {
			t.Fatalf("weight exceeded max at step %d: %d", i, next.Weight)
		}
	}
	if next.Weight != region.Max {
		t.Fatalf("expected convergence to max, got %d", next.Weight)
	}
}

func TestSoftBoundStepsShrinkNearMax(t *testing.T) {
	region := Region{Kind: SoftBound, Min: 0, Max: 1000, A2Plus: 50, A2Minus: 50, Shift: 8}
	state := NewState(0, &region)
	prevStep := int32(1 << 30)
	for i := 0; i < 200; i++ {
		next := state.ApplyPotentiation(fixed.One)
		step := next.Weight - state.Weight
		if step < 0 || step > prevStep {
			t.Fatalf("step %d not shrinking: step=%d prev=%d", i, step, prevStep)
		}
		prevStep = step
		state = next
	}
	if state.Weight < 990 || state.Weight > region.Max {
		t.Fatalf("expected weight close to max, got %d", state.Weight)
	}
}

func TestDepressionScalesByDistanceToMin(t *testing.T) {
	region := Region{Kind: SoftBound, Min: 100, Max: 1000, A2Plus: 0, A2Minus: 1 << 7, Shift: 8}
	state := NewState(500, &region)
	// (500-100) * 0.5 * 1.0 = 200
	if got := state.ApplyDepression(fixed.One).Weight; got != 300 {
		t.Fatalf("unexpected depression: got=%d want=300", got)
	}
	// half amount -> 100
	if got := state.ApplyDepression(fixed.One / 2).Weight; got != 400 {
		t.Fatalf("unexpected half depression: got=%d want=400", got)
	}
}

func TestZeroAmountLeavesWeightUntouched(t *testing.T) {
	region := Region{Kind: SoftBound, Min: 0, Max: 1000, A2Plus: 3, A2Minus: 3, Shift: 1}
	state := NewState(777, &region)
	if got := state.ApplyPotentiation(0); got != state {
		t.Fatalf("potentiation by zero changed state: %+v", got)
	}
	if got := state.ApplyDepression(0); got != state {
		t.Fatalf("depression by zero changed state: %+v", got)
	}
	if got := state.ApplyPotentiation2(0, 0); got != state {
		t.Fatalf("two-term potentiation by zero changed state: %+v", got)
	}
}

func TestAdditiveSteps(t *testing.T) {
	region := Region{Kind: Additive, Min: -50, Max: 50, A2Plus: 10, A2Minus: 20}
	state := NewState(0, &region)
	if got := state.ApplyPotentiation(fixed.One).Weight; got != 10 {
		t.Fatalf("additive potentiation: %d", got)
	}
	if got := state.ApplyDepression(fixed.One / 2).Weight; got != -10 {
		t.Fatalf("additive depression: %d", got)
	}
	if got := state.ApplyDepression(100 * fixed.One).Weight; got != -50 {
		t.Fatalf("additive depression should clamp: %d", got)
	}
}

func TestTwoTermSumsBeforeClamp(t *testing.T) {
	region := Region{Kind: AdditiveTwoTerm, Min: 0, Max: 100, A2Plus: 10, A2Minus: 10, A3Plus: 5, A3Minus: 4}
	state := NewState(50, &region)
	if got := state.ApplyPotentiation2(fixed.One, 2*fixed.One).Weight; got != 70 {
		t.Fatalf("two-term potentiation: got=%d want=70", got)
	}
	if got := state.ApplyDepression2(fixed.One, fixed.One).Weight; got != 36 {
		t.Fatalf("two-term depression: got=%d want=36", got)
	}
	if got := state.ApplyPotentiation2(100*fixed.One, 0).Weight; got != 100 {
		t.Fatalf("two-term potentiation should clamp: got=%d", got)
	}
}

func TestClampHoldsUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	regions := []Region{
		{Kind: SoftBound, Min: -200, Max: 4000, A2Plus: 900, A2Minus: 700, Shift: 10},
		{Kind: Additive, Min: 0, Max: 65535, A2Plus: 3000, A2Minus: 2500},
		{Kind: SoftBoundTwoTerm, Min: 0, Max: 1 << 15, A2Plus: 1 << 12, A2Minus: 1 << 12, A3Plus: 1 << 11, A3Minus: 1 << 10, Shift: 15},
		{Kind: AdditiveTwoTerm, Min: 10, Max: 20, A2Plus: 1 << 20, A2Minus: 1 << 20, A3Plus: 1 << 20, A3Minus: 1 << 20},
	}
	for ri := range regions {
		region := &regions[ri]
		state := NewState(int32(rng.Intn(int(region.Max-region.Min+1)))+region.Min, region)
		for i := 0; i < 5000; i++ {
			amount := int32(rng.Intn(8 * int(fixed.One)))
			amount2 := int32(rng.Intn(4 * int(fixed.One)))
			switch rng.Intn(4) {
			case 0:
				state = state.ApplyPotentiation(amount)
			case 1:
				state = state.ApplyDepression(amount)
			case 2:
				state = state.ApplyPotentiation2(amount, amount2)
			default:
				state = state.ApplyDepression2(amount, amount2)
			}
			if state.Weight < region.Min || state.Weight > region.Max {
				t.Fatalf("region %d step %d: weight %d outside [%d,%d]", ri, i, state.Weight, region.Min, region.Max)
			}
		}
	}
}

func TestNewStateClampsStoredWeight(t *testing.T) {
	region := Region{Kind: SoftBound, Min: 10, Max: 20}
	if got := NewState(50, &region).Weight; got != 20 {
		t.Fatalf("expected clamp to max, got %d", got)
	}
}

func TestReadRegionsRoundTripAndDerivedShift(t *testing.T) {
	regions := []Region{
		{Kind: SoftBoundTwoTerm, Min: 0, Max: 1000, A2Plus: 11, A2Minus: 12, A3Plus: 13, A3Minus: 14, Shift: DeriveShift},
		{Kind: SoftBoundTwoTerm, Min: 5, Max: 900, A2Plus: 21, A2Minus: 22, A3Plus: 23, A3Minus: 24, Shift: 9},
		{Kind: SoftBoundTwoTerm, Min: 0, Max: 1000, A2Plus: 50, A2Minus: 50, Shift: 0},
	}
	var w blob.Writer
	EncodeRegions(&w, regions)

	got, c, err := ReadRegions(blob.NewCursor(w.Bytes()), SoftBoundTwoTerm, 3, []uint32{3, 3, 3})
	if err != nil {
		t.Fatalf("read regions: %v", err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("unread bytes: %d", c.Remaining())
	}
	if got[0].Shift != ShiftForRingBuffer(3) || got[0].Shift != 12 {
		t.Fatalf("expected derived shift 12, got %d", got[0].Shift)
	}
	if got[1].Shift != 9 || got[1].A3Minus != 24 || got[1].Min != 5 {
		t.Fatalf("unexpected second region: %+v", got[1])
	}
	if got[2].Shift != 0 {
		t.Fatalf("explicit zero shift was replaced: %d", got[2].Shift)
	}
	state := NewState(500, &got[2]).ApplyPotentiation(fixed.One)
	if state.Weight != got[2].Max {
		t.Fatalf("unshifted soft bound step should saturate: got=%d want=%d", state.Weight, got[2].Max)
	}
}

func TestReadRegionsDerivedShiftNeedsRingBufferShift(t *testing.T) {
	var w blob.Writer
	EncodeRegions(&w, []Region{{Kind: SoftBound, Min: 0, Max: 10, Shift: DeriveShift}})
	if _, _, err := ReadRegions(blob.NewCursor(w.Bytes()), SoftBound, 1, nil); err == nil {
		t.Fatal("expected missing ring buffer shift error")
	}
}

func TestReadRegionsRejectsInvertedBounds(t *testing.T) {
	var w blob.Writer
	EncodeRegions(&w, []Region{{Kind: SoftBound, Min: 10, Max: 5, Shift: 1}})
	if _, _, err := ReadRegions(blob.NewCursor(w.Bytes()), SoftBound, 1, nil); err == nil {
		t.Fatal("expected inverted bounds error")
	}
}

func TestParseKind(t *testing.T) {
	for k := SoftBound; k <= AdditiveTwoTerm; k++ {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("parse %s: got=%v err=%v", k, got, err)
		}
	}
	if _, err := ParseKind("multiplicative"); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
