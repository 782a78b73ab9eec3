package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/lut"
)

// Vogels2011 is the symmetric inhibitory rule of Vogels et al. (2011). Both
// orderings potentiate; each pre spike also subtracts Alpha, which sets the
// target post-synaptic rate.
type Vogels2011 struct {
	Alpha int32
	Tau   *lut.DecayLUT
}

// ReadVogels2011 decodes alpha followed by the shared tau table.
func ReadVogels2011(c blob.Cursor) (*Vogels2011, blob.Cursor, error) {
	alpha, c, err := c.ReadI32()
	if err != nil {
		return nil, c, fmt.Errorf("alpha: %w", err)
	}
	tau, c, err := lut.Read(c)
	if err != nil {
		return nil, c, fmt.Errorf("tau: %w", err)
	}
	return &Vogels2011{Alpha: alpha, Tau: tau}, c, nil
}

func (v *Vogels2011) Name() string { return NameVogels2011 }

func (v *Vogels2011) Structure() Structure { return WeightOnly{} }

func (v *Vogels2011) InitialPostTrace() int32 { return 0 }

func (v *Vogels2011) AddPostSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(v.Tau.Decay(lastTrace, time-lastTime))
}

func (v *Vogels2011) AddPreSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(v.Tau.Decay(lastTrace, time-lastTime))
}

func (v *Vogels2011) ApplyPreSpike(time uint32, _ int32, _ uint32, _ int32, lastPostTime uint32, lastPostTrace int32, state UpdateState) UpdateState {
	sinceLastPost, _ := elapsed(time, lastPostTime)
	// alpha can take the amount negative
	decayedO1 := v.Tau.Decay(lastPostTrace, sinceLastPost) - v.Alpha
	state.Weight = state.Weight.ApplyPotentiation(decayedO1)
	return state
}

func (v *Vogels2011) ApplyPostSpike(time uint32, _ int32, lastPreTime uint32, lastPreTrace int32, _ uint32, _ int32, state UpdateState) UpdateState {
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok {
		return state
	}
	state.Weight = state.Weight.ApplyPotentiation(v.Tau.Decay(lastPreTrace, sinceLastPre))
	return state
}

func (v *Vogels2011) EncodePreTrace(t int32) uint32 { return encodeTrace16(t) }

func (v *Vogels2011) DecodePreTrace(w uint32) int32 { return decodeTrace16(w) }
