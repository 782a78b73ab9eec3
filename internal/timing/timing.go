// Package timing implements the spike-timing rules that turn pre- and
// post-synaptic event pairings into weight updates.
//
// Every rule implements Rule over its own pre and post trace types. The
// meaning of a trace is private to its rule: a pair rule stores a decaying
// spike trace, the recurrent rule stores a random window draw, and the
// nearest-pair rule stores nothing at all.
package timing

import (
	"math"

	"stdpengine/internal/fixed"
	"stdpengine/internal/weight"
)

// Phase is the per-synapse state of accumulator-gated rules.
type Phase uint8

const (
	Idle Phase = iota
	PreWaitingPost
	Locked
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case PreWaitingPost:
		return "pre_waiting_post"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// PostSample is the post-synaptic neuron state sampled by the processor.
// All values are S16.15.
type PostSample struct {
	Voltage       int32
	Rate          int32
	TargetRate    int32
	DendriticRate int32
	Error         int32
}

// UpdateState threads one synapse through the apply calls of a row pass.
type UpdateState struct {
	Weight      weight.State
	SynapseType uint32
	Accumulator int32
	Phase       Phase
	Eligibility int32
	// LastUpdateTime is the time the persisted rule fields refer to. The
	// processor seeds it with the delayed previous pre-spike time.
	LastUpdateTime uint32
	// LastPreValid is false until the row has seen a real pre spike.
	LastPreValid bool
	// LastPostValid is false when the post event preceding the current one
	// is the history sentinel.
	LastPostValid bool
	Post          PostSample
}

// Rule is a spike-timing rule.
type Rule[Pre, Post any] interface {
	Name() string
	InitialPostTrace() Post
	AddPostSpike(time, lastTime uint32, lastTrace Post) Post
	AddPreSpike(time, lastTime uint32, lastTrace Pre) Pre
	ApplyPreSpike(time uint32, trace Pre, lastPreTime uint32, lastPreTrace Pre, lastPostTime uint32, lastPostTrace Post, state UpdateState) UpdateState
	ApplyPostSpike(time uint32, trace Post, lastPreTime uint32, lastPreTrace Pre, lastPostTime uint32, lastPostTrace Post, state UpdateState) UpdateState
	// EncodePreTrace and DecodePreTrace move the pre trace in and out of the
	// row header word.
	EncodePreTrace(Pre) uint32
	DecodePreTrace(uint32) Pre
	// Structure is the plastic word layout the rule persists.
	Structure() Structure
}

// SampleTracer is implemented by rules whose post trace records the neuron
// state at the post spike. The processor prefers it over AddPostSpike.
type SampleTracer[Post any] interface {
	AddPostSpikeSample(time, lastTime uint32, lastTrace Post, sample PostSample) Post
}

// Neuromodulated is implemented by rules that consume neuromodulator events
// logged in the post history.
type Neuromodulated[Pre, Post any] interface {
	AddDopamine(time, lastTime uint32, lastTrace Post, concentration int32) Post
	ApplyDopamine(time uint32, trace Post, lastPreTime uint32, lastPreTrace Pre, state UpdateState) UpdateState
}

// Empty is the trace of rules that only use spike times.
type Empty struct{}

// elapsed returns a-b when a is after b.
func elapsed(a, b uint32) (uint32, bool) {
	if a <= b {
		return 0, false
	}
	return a - b, true
}

// bumpTrace adds one spike to a decayed trace, saturating at the 16-bit
// range the row header can store.
func bumpTrace(decayed int32) int32 {
	return clampTrace(decayed + fixed.One)
}

func clampTrace(v int32) int32 {
	return fixed.Clamp(v, math.MinInt16, math.MaxInt16)
}

func encodeTrace16(v int32) uint32 {
	return uint32(uint16(int16(clampTrace(v))))
}

func decodeTrace16(w uint32) int32 {
	return int32(int16(uint16(w)))
}

// applySigned potentiates for positive amounts and depresses for negative.
func applySigned(state UpdateState, amount int32) UpdateState {
	switch {
	case amount > 0:
		state.Weight = state.Weight.ApplyPotentiation(amount)
	case amount < 0:
		state.Weight = state.Weight.ApplyDepression(-amount)
	}
	return state
}
