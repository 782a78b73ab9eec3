package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/lut"
)

// Pair is all-to-all pair-based STDP. Each side keeps an exponentially
// decaying trace incremented by One per spike; a pre spike depresses by the
// decayed post trace and a post spike potentiates by the decayed pre trace.
type Pair struct {
	TauPlus  *lut.DecayLUT
	TauMinus *lut.DecayLUT
}

// ReadPair decodes tau_plus and tau_minus tables.
func ReadPair(c blob.Cursor) (*Pair, blob.Cursor, error) {
	plus, c, err := lut.Read(c)
	if err != nil {
		return nil, c, fmt.Errorf("tau_plus: %w", err)
	}
	minus, c, err := lut.Read(c)
	if err != nil {
		return nil, c, fmt.Errorf("tau_minus: %w", err)
	}
	return &Pair{TauPlus: plus, TauMinus: minus}, c, nil
}

func (p *Pair) Name() string { return NamePair }

func (p *Pair) Structure() Structure { return WeightOnly{} }

func (p *Pair) InitialPostTrace() int32 { return 0 }

func (p *Pair) AddPostSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(p.TauMinus.Decay(lastTrace, time-lastTime))
}

func (p *Pair) AddPreSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(p.TauPlus.Decay(lastTrace, time-lastTime))
}

func (p *Pair) ApplyPreSpike(time uint32, _ int32, _ uint32, _ int32, lastPostTime uint32, lastPostTrace int32, state UpdateState) UpdateState {
	if !state.LastPostValid {
		return state
	}
	sinceLastPost, ok := elapsed(time, lastPostTime)
	if !ok {
		return state
	}
	decayedO1 := p.TauMinus.Decay(lastPostTrace, sinceLastPost)
	state.Weight = state.Weight.ApplyDepression(decayedO1)
	return state
}

func (p *Pair) ApplyPostSpike(time uint32, _ int32, lastPreTime uint32, lastPreTrace int32, _ uint32, _ int32, state UpdateState) UpdateState {
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok {
		return state
	}
	decayedR1 := p.TauPlus.Decay(lastPreTrace, sinceLastPre)
	state.Weight = state.Weight.ApplyPotentiation(decayedR1)
	return state
}

func (p *Pair) EncodePreTrace(v int32) uint32 { return encodeTrace16(v) }

func (p *Pair) DecodePreTrace(w uint32) int32 { return decodeTrace16(w) }
