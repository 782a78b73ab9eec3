package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
)

// DopamineTrace is the post trace of DopaminePair: a spike trace and the
// current neuromodulator concentration.
type DopamineTrace struct {
	Spike    int32
	Dopamine int32
}

// DopaminePair is pair STDP gated by a neuromodulator. Pairings charge a
// per-synapse eligibility trace instead of the weight; the weight moves
// only when dopamine arrives, by eligibility times concentration.
type DopaminePair struct {
	TauPlus  *lut.DecayLUT
	TauMinus *lut.DecayLUT
	// TauC decays the eligibility trace, TauD the concentration.
	TauC *lut.DecayLUT
	TauD *lut.DecayLUT
}

func ReadDopaminePair(c blob.Cursor) (*DopaminePair, blob.Cursor, error) {
	var tables [4]*lut.DecayLUT
	names := [4]string{"tau_plus", "tau_minus", "tau_c", "tau_d"}
	for i := range tables {
		var err error
		if tables[i], c, err = lut.Read(c); err != nil {
			return nil, c, fmt.Errorf("%s: %w", names[i], err)
		}
	}
	return &DopaminePair{TauPlus: tables[0], TauMinus: tables[1], TauC: tables[2], TauD: tables[3]}, c, nil
}

func (d *DopaminePair) Name() string { return NameDopaminePair }

func (d *DopaminePair) Structure() Structure { return WeightEligibility{} }

func (d *DopaminePair) InitialPostTrace() DopamineTrace { return DopamineTrace{} }

func (d *DopaminePair) AddPostSpike(time, lastTime uint32, lastTrace DopamineTrace) DopamineTrace {
	dt := time - lastTime
	return DopamineTrace{
		Spike:    bumpTrace(d.TauMinus.Decay(lastTrace.Spike, dt)),
		Dopamine: d.TauD.Decay(lastTrace.Dopamine, dt),
	}
}

func (d *DopaminePair) AddPreSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(d.TauPlus.Decay(lastTrace, time-lastTime))
}

func (d *DopaminePair) AddDopamine(time, lastTime uint32, lastTrace DopamineTrace, concentration int32) DopamineTrace {
	dt := time - lastTime
	return DopamineTrace{
		Spike:    d.TauMinus.Decay(lastTrace.Spike, dt),
		Dopamine: clampTrace(d.TauD.Decay(lastTrace.Dopamine, dt) + fixed.AccumToSTDP(concentration)),
	}
}

// decayEligibility brings the eligibility trace forward to time.
func (d *DopaminePair) decayEligibility(time uint32, state UpdateState) UpdateState {
	if dt, ok := elapsed(time, state.LastUpdateTime); ok {
		state.Eligibility = d.TauC.Decay(state.Eligibility, dt)
		state.LastUpdateTime = time
	}
	return state
}

func (d *DopaminePair) ApplyPreSpike(time uint32, _ int32, _ uint32, _ int32, lastPostTime uint32, lastPostTrace DopamineTrace, state UpdateState) UpdateState {
	state = d.decayEligibility(time, state)
	if !state.LastPostValid {
		return state
	}
	sinceLastPost, ok := elapsed(time, lastPostTime)
	if !ok {
		return state
	}
	state.Eligibility = clampTrace(state.Eligibility - d.TauMinus.Decay(lastPostTrace.Spike, sinceLastPost))
	return state
}

func (d *DopaminePair) ApplyPostSpike(time uint32, _ DopamineTrace, lastPreTime uint32, lastPreTrace int32, _ uint32, _ DopamineTrace, state UpdateState) UpdateState {
	state = d.decayEligibility(time, state)
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok {
		return state
	}
	state.Eligibility = clampTrace(state.Eligibility + d.TauPlus.Decay(lastPreTrace, sinceLastPre))
	return state
}

func (d *DopaminePair) ApplyDopamine(time uint32, trace DopamineTrace, _ uint32, _ int32, state UpdateState) UpdateState {
	state = d.decayEligibility(time, state)
	return applySigned(state, fixed.Mul16x16(state.Eligibility, trace.Dopamine))
}

func (d *DopaminePair) EncodePreTrace(v int32) uint32 { return encodeTrace16(v) }

func (d *DopaminePair) DecodePreTrace(w uint32) int32 { return decodeTrace16(w) }
