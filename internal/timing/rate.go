package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
)

// rateRule drives the weight on each pre spike by the pre trace times a
// rate difference sampled from the post neuron.
type rateRule struct {
	name    string
	TauPlus *lut.DecayLUT
	diff    func(PostSample) int32
}

// Target moves weights so that the post rate approaches its target rate.
type Target struct{ rateRule }

// RatePyramidal moves weights so that the somatic rate follows the
// dendritic prediction.
type RatePyramidal struct{ rateRule }

func NewTarget(tauPlus *lut.DecayLUT) *Target {
	return &Target{rateRule{name: NameTarget, TauPlus: tauPlus, diff: func(s PostSample) int32 {
		return s.TargetRate - s.Rate
	}}}
}

func NewRatePyramidal(tauPlus *lut.DecayLUT) *RatePyramidal {
	return &RatePyramidal{rateRule{name: NameRatePyramidal, TauPlus: tauPlus, diff: func(s PostSample) int32 {
		return s.Rate - s.DendriticRate
	}}}
}

func readTauPlus(c blob.Cursor) (*lut.DecayLUT, blob.Cursor, error) {
	plus, c, err := lut.Read(c)
	if err != nil {
		return nil, c, fmt.Errorf("tau_plus: %w", err)
	}
	return plus, c, nil
}

func ReadTarget(c blob.Cursor) (*Target, blob.Cursor, error) {
	plus, c, err := readTauPlus(c)
	if err != nil {
		return nil, c, err
	}
	return NewTarget(plus), c, nil
}

func ReadRatePyramidal(c blob.Cursor) (*RatePyramidal, blob.Cursor, error) {
	plus, c, err := readTauPlus(c)
	if err != nil {
		return nil, c, err
	}
	return NewRatePyramidal(plus), c, nil
}

func (r *rateRule) Name() string { return r.name }

func (r *rateRule) Structure() Structure { return WeightOnly{} }

func (r *rateRule) InitialPostTrace() Empty { return Empty{} }

func (r *rateRule) AddPostSpike(_, _ uint32, _ Empty) Empty { return Empty{} }

func (r *rateRule) AddPreSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(r.TauPlus.Decay(lastTrace, time-lastTime))
}

func (r *rateRule) ApplyPreSpike(_ uint32, trace int32, _ uint32, _ int32, _ uint32, _ Empty, state UpdateState) UpdateState {
	amount := fixed.Mul16x16(trace, fixed.AccumToSTDP(r.diff(state.Post)))
	return applySigned(state, amount)
}

func (r *rateRule) ApplyPostSpike(_ uint32, _ Empty, _ uint32, _ int32, _ uint32, _ Empty, state UpdateState) UpdateState {
	return state
}

func (r *rateRule) EncodePreTrace(v int32) uint32 { return encodeTrace16(v) }

func (r *rateRule) DecodePreTrace(w uint32) int32 { return decodeTrace16(w) }
