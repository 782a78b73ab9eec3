package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
)

// TripletTrace holds a fast and a slow trace for one side of a synapse.
type TripletTrace struct {
	Fast int32
	Slow int32
}

// PfisterTriplet is the spike-triplet rule of Pfister and Gerstner (2006).
// Depression is driven by the fast post trace and gated by the slow pre
// trace; potentiation by the fast pre trace gated by the slow post trace.
// It needs a two-term weight region.
type PfisterTriplet struct {
	TauPlus  *lut.DecayLUT
	TauMinus *lut.DecayLUT
	TauX     *lut.DecayLUT
	TauY     *lut.DecayLUT
}

func ReadPfisterTriplet(c blob.Cursor) (*PfisterTriplet, blob.Cursor, error) {
	var (
		tables [4]*lut.DecayLUT
		err    error
	)
	for i, name := range []string{"tau_plus", "tau_minus", "tau_x", "tau_y"} {
		if tables[i], c, err = lut.Read(c); err != nil {
			return nil, c, fmt.Errorf("%s: %w", name, err)
		}
	}
	return &PfisterTriplet{TauPlus: tables[0], TauMinus: tables[1], TauX: tables[2], TauY: tables[3]}, c, nil
}

func (p *PfisterTriplet) Name() string { return NamePfisterTriplet }

func (p *PfisterTriplet) Structure() Structure { return WeightOnly{} }

func (p *PfisterTriplet) InitialPostTrace() TripletTrace { return TripletTrace{} }

func (p *PfisterTriplet) AddPostSpike(time, lastTime uint32, last TripletTrace) TripletTrace {
	dt := time - lastTime
	return TripletTrace{
		Fast: bumpTrace(p.TauMinus.Decay(last.Fast, dt)),
		Slow: bumpTrace(p.TauY.Decay(last.Slow, dt)),
	}
}

func (p *PfisterTriplet) AddPreSpike(time, lastTime uint32, last TripletTrace) TripletTrace {
	dt := time - lastTime
	return TripletTrace{
		Fast: bumpTrace(p.TauPlus.Decay(last.Fast, dt)),
		Slow: bumpTrace(p.TauX.Decay(last.Slow, dt)),
	}
}

func (p *PfisterTriplet) ApplyPreSpike(time uint32, _ TripletTrace, lastPreTime uint32, lastPreTrace TripletTrace, lastPostTime uint32, lastPostTrace TripletTrace, state UpdateState) UpdateState {
	if !state.LastPostValid {
		return state
	}
	sinceLastPost, ok := elapsed(time, lastPostTime)
	if !ok {
		return state
	}
	decayedO1 := p.TauMinus.Decay(lastPostTrace.Fast, sinceLastPost)
	sinceLastPre, _ := elapsed(time, lastPreTime)
	decayedR2 := p.TauX.Decay(lastPreTrace.Slow, sinceLastPre)
	state.Weight = state.Weight.ApplyDepression2(decayedO1, fixed.Mul16x16(decayedO1, decayedR2))
	return state
}

func (p *PfisterTriplet) ApplyPostSpike(time uint32, _ TripletTrace, lastPreTime uint32, lastPreTrace TripletTrace, lastPostTime uint32, lastPostTrace TripletTrace, state UpdateState) UpdateState {
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok {
		return state
	}
	decayedR1 := p.TauPlus.Decay(lastPreTrace.Fast, sinceLastPre)
	sinceLastPost, _ := elapsed(time, lastPostTime)
	decayedO2 := p.TauY.Decay(lastPostTrace.Slow, sinceLastPost)
	state.Weight = state.Weight.ApplyPotentiation2(decayedR1, fixed.Mul16x16(decayedR1, decayedO2))
	return state
}

func (p *PfisterTriplet) EncodePreTrace(t TripletTrace) uint32 {
	return encodeTrace16(t.Fast) | encodeTrace16(t.Slow)<<16
}

func (p *PfisterTriplet) DecodePreTrace(w uint32) TripletTrace {
	return TripletTrace{Fast: decodeTrace16(w), Slow: decodeTrace16(w >> 16)}
}
