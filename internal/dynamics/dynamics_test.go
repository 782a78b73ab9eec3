package dynamics

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/history"
	"stdpengine/internal/lut"
	"stdpengine/internal/ring"
	"stdpengine/internal/synapse"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
)

func testTable(t *testing.T, tau float32) *lut.DecayLUT {
	t.Helper()
	table, err := lut.Generate(tau, 1, 256, 0)
	if err != nil {
		t.Fatalf("generate table: %v", err)
	}
	return table
}

func additiveRegion() weight.Region {
	return weight.Region{Kind: weight.Additive, Min: 0, Max: 60000, A2Plus: fixed.One, A2Minus: fixed.One}
}

func writeHeader(w *blob.Writer, tag timing.Tag, kind weight.Kind, axonalBits, dendriticBits uint32) {
	w.PutU32(uint32(tag))
	w.PutU32(uint32(kind))
	w.PutU32(axonalBits)
	w.PutU32(dendriticBits)
}

func pairBlob(t *testing.T, plus, minus *lut.DecayLUT, regions ...weight.Region) []byte {
	t.Helper()
	return delayedPairBlob(t, 0, plus, minus, regions...)
}

func delayedPairBlob(t *testing.T, axonalBits uint32, plus, minus *lut.DecayLUT, regions ...weight.Region) []byte {
	t.Helper()
	var w blob.Writer
	writeHeader(&w, 1, weight.Additive, axonalBits, 4)
	plus.Encode(&w)
	minus.Encode(&w)
	weight.EncodeRegions(&w, regions)
	return w.Bytes()
}

func newPairEngine(t *testing.T, opts ...Option) (Dynamics, *lut.DecayLUT, *lut.DecayLUT) {
	t.Helper()
	plus, minus := testTable(t, 20), testTable(t, 40)
	d, err := Initialise(pairBlob(t, plus, minus, additiveRegion()), 4, 1, []uint32{7}, opts...)
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	return d, plus, minus
}

func newRings(t *testing.T, d Dynamics) *ring.Buffers {
	t.Helper()
	rings, err := ring.New(d.Layout().RingBufferSize())
	if err != nil {
		t.Fatalf("new rings: %v", err)
	}
	return rings
}

func singleSynapseRow(t *testing.T, d Dynamics, index, dendritic uint32, w int32) *synapse.Row {
	t.Helper()
	control := d.Layout().Encode(synapse.Control{Index: index, DendriticDelay: dendritic})
	row, err := synapse.NewRow([]uint32{uint32(w)}, []uint32{control})
	if err != nil {
		t.Fatalf("new row: %v", err)
	}
	return row
}

func TestPairRowReplaysPostHistory(t *testing.T) {
	d, plus, minus := newPairEngine(t)
	rings := newRings(t, d)
	row := singleSynapseRow(t, d, 2, 1, 1000)

	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("first pre spike: %v", err)
	}
	if row.Plastic[0] != 1000 {
		t.Fatalf("first pre spike changed weight: %d", row.Plastic[0])
	}
	if got := rings.Get(d.Layout().RingIndex(11, 2)); got != 1000 {
		t.Fatalf("unexpected ring contribution: %d", got)
	}
	if err := d.ProcessPostSynapticEvent(14, 2); err != nil {
		t.Fatalf("post spike: %v", err)
	}
	if err := d.ProcessPlasticRow(row, rings, 20); err != nil {
		t.Fatalf("second pre spike: %v", err)
	}

	// post at 14 reaches the synapse at 15: potentiation by the pre trace
	// from 10, then the pre spike at 20 depresses by the post trace from 15
	want := 1000 + plus.Decay(fixed.One, 5) - minus.Decay(fixed.One, 5)
	if int32(row.Plastic[0]) != want {
		t.Fatalf("unexpected weight: got=%d want=%d", row.Plastic[0], want)
	}
	if got := rings.Get(d.Layout().RingIndex(21, 2)); got != want {
		t.Fatalf("unexpected ring contribution: got=%d want=%d", got, want)
	}
	if row.PreTime != 20 {
		t.Fatalf("row pre time not updated: %d", row.PreTime)
	}
	stats := d.Stats()
	if stats.Rows != 2 || stats.PlasticSynapses != 2 || stats.PostEvents != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDendriticDelayDefersLatePostSpike(t *testing.T) {
	d, plus, minus := newPairEngine(t)
	rings := newRings(t, d)
	row := singleSynapseRow(t, d, 1, 1, 1000)

	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	if err := d.ProcessPostSynapticEvent(20, 1); err != nil {
		t.Fatalf("post spike: %v", err)
	}
	if err := d.ProcessPlasticRow(row, rings, 20); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	if row.Plastic[0] != 1000 {
		t.Fatalf("post spike outside the window was applied: %d", row.Plastic[0])
	}

	// the deferred post spike is replayed by the next pre spike
	preTraceAt20 := fixed.One + plus.Decay(fixed.One, 10)
	if err := d.ProcessPlasticRow(row, rings, 40); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	want := 1000 + plus.Decay(preTraceAt20, 1) - minus.Decay(fixed.One, 19)
	if int32(row.Plastic[0]) != want {
		t.Fatalf("unexpected weight after replay: got=%d want=%d", row.Plastic[0], want)
	}
}

func TestAxonalDelayShiftsWindowAndRingSlot(t *testing.T) {
	plus, minus := testTable(t, 20), testTable(t, 40)
	d, err := Initialise(delayedPairBlob(t, 2, plus, minus, additiveRegion()), 4, 1, []uint32{7})
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	if d.Layout().AxonalDelayBits != 2 {
		t.Fatalf("unexpected layout: %+v", d.Layout())
	}
	rings := newRings(t, d)
	control := d.Layout().Encode(synapse.Control{Index: 2, DendriticDelay: 1, AxonalDelay: 3})
	row, err := synapse.NewRow([]uint32{10000}, []uint32{control})
	if err != nil {
		t.Fatalf("new row: %v", err)
	}

	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("first pre spike: %v", err)
	}
	for _, post := range []uint32{11, 14} {
		if err := d.ProcessPostSynapticEvent(post, 2); err != nil {
			t.Fatalf("post spike at %d: %v", post, err)
		}
	}
	if err := d.ProcessPlasticRow(row, rings, 20); err != nil {
		t.Fatalf("second pre spike: %v", err)
	}

	// the pre spikes reach the synapse at 13 and 23, the post spikes at 12
	// and 15; only the post at 15 falls in (13, 23]
	postTraceAt15 := fixed.One + minus.Decay(fixed.One, 3)
	want := 10000 + plus.Decay(fixed.One, 2) - minus.Decay(postTraceAt15, 8)
	if int32(row.Plastic[0]) != want {
		t.Fatalf("unexpected weight: got=%d want=%d", row.Plastic[0], want)
	}
	if got := rings.Get(d.Layout().RingIndex(24, 2)); got != want {
		t.Fatalf("unexpected ring contribution at 24: got=%d want=%d", got, want)
	}
}

func TestMalformedRowsAreRejectedUntouched(t *testing.T) {
	plus, minus := testTable(t, 20), testTable(t, 20)
	d, err := Initialise(pairBlob(t, plus, minus, additiveRegion()), 5, 1, []uint32{7})
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	rings := newRings(t, d)
	row := singleSynapseRow(t, d, 6, 0, 1000)
	if err := d.ProcessPlasticRow(row, rings, 10); !errors.Is(err, ErrNeuronIndex) {
		t.Fatalf("expected neuron index error, got %v", err)
	}
	if row.PreTime != 0 {
		t.Fatalf("rejected row was modified: %+v", row)
	}
	if err := d.ProcessPostSynapticEvent(1, 9); !errors.Is(err, ErrNeuronIndex) {
		t.Fatalf("expected neuron index error, got %v", err)
	}
	small, _ := ring.New(4)
	if err := d.ProcessPlasticRow(singleSynapseRow(t, d, 1, 0, 1), small, 10); !errors.Is(err, ErrRingBuffer) {
		t.Fatalf("expected ring buffer error, got %v", err)
	}
	if _, err := d.PostHistory(5); !errors.Is(err, ErrNeuronIndex) {
		t.Fatalf("expected neuron index error, got %v", err)
	}
}

func TestRingSaturationIsCountedAndExported(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	d, _, _ := newPairEngine(t, WithMetrics(metrics))
	rings := newRings(t, d)
	row := singleSynapseRow(t, d, 0, 0, 1000)

	rings.Add(d.Layout().RingIndex(10, 0), math.MaxInt32-10)
	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("process row: %v", err)
	}
	if got := rings.Get(d.Layout().RingIndex(10, 0)); got != math.MaxInt32 {
		t.Fatalf("expected saturated slot, got %d", got)
	}
	if d.Stats().RingOverflows != 1 {
		t.Fatalf("unexpected overflow count: %d", d.Stats().RingOverflows)
	}
	if got := testutil.ToFloat64(metrics.ringSaturations.WithLabelValues("overflow")); got != 1 {
		t.Fatalf("unexpected overflow metric: %v", got)
	}
	if got := testutil.ToFloat64(metrics.rows); got != 1 {
		t.Fatalf("unexpected rows metric: %v", got)
	}
}

func TestHistoryEvictionsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	d, _, _ := newPairEngine(t, WithMetrics(metrics))
	for i := uint32(1); i <= 20; i++ {
		if err := d.ProcessPostSynapticEvent(i, 3); err != nil {
			t.Fatalf("post spike %d: %v", i, err)
		}
	}
	if d.Stats().HistoryEvictions != 5 {
		t.Fatalf("unexpected evictions: %d", d.Stats().HistoryEvictions)
	}
	if got := testutil.ToFloat64(metrics.historyEvictions); got != 5 {
		t.Fatalf("unexpected eviction metric: %v", got)
	}
	events, err := d.PostHistory(3)
	if err != nil {
		t.Fatalf("post history: %v", err)
	}
	if len(events) != history.Capacity-1 || events[0].Time != 6 || events[len(events)-1].Time != 20 {
		t.Fatalf("unexpected history: %+v", events)
	}
}

func TestNeuromodulatorEventsNeedNeuromodulatedRule(t *testing.T) {
	d, _, _ := newPairEngine(t)
	if err := d.ProcessNeuromodulatorEvent(5, 0, fixed.AccumOne); !errors.Is(err, ErrNotNeuromodulated) {
		t.Fatalf("expected not neuromodulated error, got %v", err)
	}
}

func TestDopamineRewardConvertsEligibility(t *testing.T) {
	var w blob.Writer
	writeHeader(&w, 9, weight.Additive, 0, 4)
	for _, tau := range []float32{20, 20, 1000, 200} {
		testTable(t, tau).Encode(&w)
	}
	weight.EncodeRegions(&w, []weight.Region{additiveRegion()})
	d, err := Initialise(w.Bytes(), 4, 1, []uint32{7})
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	rings := newRings(t, d)
	control := d.Layout().Encode(synapse.Control{Index: 1})
	row, _ := synapse.NewRow([]uint32{timing.WeightEligibility{}.Encode(timing.UpdateState{Weight: weight.NewState(1000, &d.Regions()[0])})}, []uint32{control})

	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	if err := d.ProcessPostSynapticEvent(12, 1); err != nil {
		t.Fatalf("post spike: %v", err)
	}
	if err := d.ProcessNeuromodulatorEvent(14, 1, fixed.AccumOne); err != nil {
		t.Fatalf("dopamine: %v", err)
	}
	if err := d.ProcessPlasticRow(row, rings, 20); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	regions := d.Regions()
	state := timing.WeightEligibility{}.Decode(row.Plastic[0], &regions[0])
	if state.Weight.Weight <= 1000 {
		t.Fatalf("expected reward to potentiate, got %d", state.Weight.Weight)
	}
	events, err := d.PostHistory(1)
	if err != nil {
		t.Fatalf("post history: %v", err)
	}
	if len(events) != 2 || events[0].Dopamine || !events[1].Dopamine {
		t.Fatalf("unexpected history: %+v", events)
	}
	if d.Stats().NeuromodulatorEvents != 1 {
		t.Fatalf("unexpected stats: %+v", d.Stats())
	}
}

func recurrentEngine(t *testing.T, neurons NeuronState) Dynamics {
	t.Helper()
	var params timing.RecurrentParams
	for i := range params.Groups {
		params.Groups[i] = timing.RecurrentGroup{AccumDepPlusOne: -1, AccumPotMinusOne: 0, PreWindowTC: 10, PostWindowTC: 10}
	}
	params.VThresh = fixed.AccumOne
	var w blob.Writer
	writeHeader(&w, 5, weight.Additive, 0, 4)
	params.Encode(&w)
	region := additiveRegion()
	region.A2Plus = 100
	weight.EncodeRegions(&w, []weight.Region{region})
	d, err := Initialise(w.Bytes(), 4, 1, []uint32{7}, WithNeuronState(neurons))
	if err != nil {
		t.Fatalf("initialise: %v", err)
	}
	return d
}

func TestRecurrentLocksUntilReset(t *testing.T) {
	neurons := NeuronSamples{{}, {Voltage: -fixed.AccumOne}}
	d := recurrentEngine(t, neurons)
	rings := newRings(t, d)
	row := singleSynapseRow(t, d, 1, 0, 1000)
	regions := d.Regions()
	structure := timing.WeightAccumulator{}

	if err := d.ProcessPlasticRow(row, rings, 10); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	if got := structure.Decode(row.Plastic[0], &regions[0]).Phase; got != timing.PreWaitingPost {
		t.Fatalf("expected pre_waiting_post, got %s", got)
	}
	if err := d.ProcessPostSynapticEvent(13, 1); err != nil {
		t.Fatalf("post spike: %v", err)
	}
	if err := d.ProcessPlasticRow(row, rings, 30); err != nil {
		t.Fatalf("pre spike: %v", err)
	}
	state := structure.Decode(row.Plastic[0], &regions[0])
	if state.Phase != timing.Locked || state.Weight.Weight != 1100 {
		t.Fatalf("expected locked potentiated synapse, got %+v", state)
	}
	events, _ := d.PostHistory(1)
	if !strings.Contains(events[0].Trace, "Voltage:-32768") {
		t.Fatalf("post trace did not sample voltage: %s", events[0].Trace)
	}

	d.ResetLocks(row)
	state = structure.Decode(row.Plastic[0], &regions[0])
	if state.Phase != timing.Idle || state.Weight.Weight != 1100 {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
}

func TestInitialiseFailures(t *testing.T) {
	plus, minus := testTable(t, 20), testTable(t, 20)
	good := pairBlob(t, plus, minus, additiveRegion())

	if _, err := Initialise(good[:6], 4, 1, nil); !errors.Is(err, blob.ErrShortBlob) {
		t.Fatalf("expected short blob error, got %v", err)
	}
	if _, err := Initialise(good[:len(good)-4], 4, 1, nil); !errors.Is(err, blob.ErrShortBlob) {
		t.Fatalf("expected short region error, got %v", err)
	}
	bad := append([]byte(nil), good...)
	bad[0] = 42
	if _, err := Initialise(bad, 4, 1, nil); err == nil {
		t.Fatal("expected unknown tag error")
	}
	if _, err := Initialise(good, 0, 1, nil); !errors.Is(err, synapse.ErrLayout) {
		t.Fatalf("expected layout error, got %v", err)
	}
	if _, err := Initialise(good, history.MaxNeurons+1, 1, nil); !errors.Is(err, history.ErrAllocation) {
		t.Fatalf("expected allocation error, got %v", err)
	}
	wide := additiveRegion()
	wide.Max = 70000
	if _, err := Initialise(pairBlob(t, plus, minus, wide), 4, 1, nil); err == nil {
		t.Fatal("expected region range error")
	}
}

func TestRuleRegistry(t *testing.T) {
	t.Cleanup(resetRulesForTests)
	if err := RegisterRule(timing.NamePair, Bind[int32, int32](timing.ReadPair)); !errors.Is(err, ErrRuleExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := lookupRule("bcm"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := lookupRule("Triplet"); err != nil {
		t.Fatalf("alias lookup: %v", err)
	}
	if err := RegisterRule("pair_clone", Bind[int32, int32](timing.ReadPair)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := len(RegisteredRules()); got != len(timing.Names())+1 {
		t.Fatalf("unexpected rule count: %d", got)
	}
	resetRulesForTests()
	if got := len(RegisteredRules()); got != len(timing.Names()) {
		t.Fatalf("unexpected rule count after reset: %d", got)
	}
}
