package timing

import (
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
)

// Erbp is event-driven random back-propagation. On each pre spike the
// weight moves by -error, gated by a triangular window on the membrane
// voltage and scaled by the pre trace. Post spikes do nothing.
type Erbp struct {
	TauPlus *lut.DecayLUT
	// VCenter and VHalfWidth are S16.15 and define the triangular gate.
	VCenter    int32
	VHalfWidth int32
}

func ReadErbp(c blob.Cursor) (*Erbp, blob.Cursor, error) {
	plus, c, err := lut.Read(c)
	if err != nil {
		return nil, c, fmt.Errorf("tau_plus: %w", err)
	}
	center, c, err := c.ReadI32()
	if err != nil {
		return nil, c, fmt.Errorf("v_center: %w", err)
	}
	half, c, err := c.ReadI32()
	if err != nil {
		return nil, c, fmt.Errorf("v_half_width: %w", err)
	}
	return &Erbp{TauPlus: plus, VCenter: center, VHalfWidth: half}, c, nil
}

func (e *Erbp) Name() string { return NameErbp }

func (e *Erbp) Structure() Structure { return WeightOnly{} }

func (e *Erbp) InitialPostTrace() Empty { return Empty{} }

func (e *Erbp) AddPostSpike(_, _ uint32, _ Empty) Empty { return Empty{} }

func (e *Erbp) AddPreSpike(time, lastTime uint32, lastTrace int32) int32 {
	return bumpTrace(e.TauPlus.Decay(lastTrace, time-lastTime))
}

// gate is One at VCenter falling linearly to zero at VCenter±VHalfWidth.
func (e *Erbp) gate(v int32) int32 {
	if e.VHalfWidth <= 0 {
		return 0
	}
	d := fixed.Abs(v - e.VCenter)
	if d >= e.VHalfWidth {
		return 0
	}
	return int32((int64(e.VHalfWidth-d) << fixed.STDPFixedPoint) / int64(e.VHalfWidth))
}

func (e *Erbp) ApplyPreSpike(_ uint32, trace int32, _ uint32, _ int32, _ uint32, _ Empty, state UpdateState) UpdateState {
	g := e.gate(state.Post.Voltage)
	if g == 0 {
		return state
	}
	amount := fixed.Mul16x16(fixed.Mul16x16(-fixed.AccumToSTDP(state.Post.Error), g), trace)
	return applySigned(state, amount)
}

func (e *Erbp) ApplyPostSpike(_ uint32, _ Empty, _ uint32, _ int32, _ uint32, _ Empty, state UpdateState) UpdateState {
	return state
}

func (e *Erbp) EncodePreTrace(v int32) uint32 { return encodeTrace16(v) }

func (e *Erbp) DecodePreTrace(w uint32) int32 { return decodeTrace16(w) }
