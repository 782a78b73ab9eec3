package timing

import (
	"stdpengine/internal/blob"
	"stdpengine/internal/lut"
)

// NearestPair pairs each spike only with the nearest spike of the other
// side. No traces are kept; the decay table is applied to the raw interval.
type NearestPair struct {
	TauPlus  *lut.DecayLUT
	TauMinus *lut.DecayLUT
}

func ReadNearestPair(c blob.Cursor) (*NearestPair, blob.Cursor, error) {
	p, c, err := ReadPair(c)
	if err != nil {
		return nil, c, err
	}
	return &NearestPair{TauPlus: p.TauPlus, TauMinus: p.TauMinus}, c, nil
}

func (p *NearestPair) Name() string { return NameNearestPair }

func (p *NearestPair) Structure() Structure { return WeightOnly{} }

func (p *NearestPair) InitialPostTrace() Empty { return Empty{} }

func (p *NearestPair) AddPostSpike(_, _ uint32, _ Empty) Empty { return Empty{} }

func (p *NearestPair) AddPreSpike(_, _ uint32, _ Empty) Empty { return Empty{} }

func (p *NearestPair) ApplyPreSpike(time uint32, _ Empty, _ uint32, _ Empty, lastPostTime uint32, _ Empty, state UpdateState) UpdateState {
	if !state.LastPostValid {
		return state
	}
	sinceLastPost, ok := elapsed(time, lastPostTime)
	if !ok {
		return state
	}
	state.Weight = state.Weight.ApplyDepression(p.TauMinus.Lookup(sinceLastPost))
	return state
}

func (p *NearestPair) ApplyPostSpike(time uint32, _ Empty, lastPreTime uint32, _ Empty, lastPostTime uint32, _ Empty, state UpdateState) UpdateState {
	if !state.LastPreValid {
		return state
	}
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok {
		return state
	}
	state.Weight = state.Weight.ApplyPotentiation(p.nearestPotentiation(time, sinceLastPre, lastPostTime, state.LastPostValid))
	return state
}

// nearestPotentiation is zero unless this is the first post spike since the
// last pre spike.
func (p *NearestPair) nearestPotentiation(time, sinceLastPre, lastPostTime uint32, lastPostValid bool) int32 {
	decayedR1 := p.TauPlus.Lookup(sinceLastPre)
	if lastPostValid {
		if sinceLastPost, ok := elapsed(time, lastPostTime); ok && sinceLastPost < sinceLastPre {
			decayedR1 = 0
		}
	}
	return decayedR1
}

func (p *NearestPair) EncodePreTrace(Empty) uint32 { return 0 }

func (p *NearestPair) DecodePreTrace(uint32) Empty { return Empty{} }
