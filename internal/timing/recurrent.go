package timing

import (
	"fmt"
	"math/rand/v2"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
)

const (
	// RecurrentGroups is the number of synapse type groups
	// (excitatory 1, excitatory 2, inhibitory 1, inhibitory 2).
	RecurrentGroups = 4
	// RecurrentWindowTableSize and RecurrentWindowTableShift describe the
	// window-length tables, indexed by the top 8 bits of a 16-bit draw.
	RecurrentWindowTableSize  = 256
	RecurrentWindowTableShift = 8
)

// RecurrentGroup holds the thresholds and fixed windows of one group.
type RecurrentGroup struct {
	AccumDepPlusOne  int32
	AccumPotMinusOne int32
	PreWindowTC      int32
	PostWindowTC     int32
}

// RecurrentParams is the configuration of the Recurrent rule.
type RecurrentParams struct {
	// AccumDecayPerTS is S16.15 accumulator decay per timestep.
	AccumDecayPerTS int32
	Groups          [RecurrentGroups]RecurrentGroup
	RandomEnabled   bool
	// VThresh is the S16.15 voltage below which a post spike counts as
	// externally forced.
	VThresh     int32
	PreWindows  [RecurrentGroups]*lut.DecayLUT
	PostWindows [RecurrentGroups]*lut.DecayLUT
	Seed        [4]uint32
}

// RecurrentPreTrace is the random draw that sets the pre window length.
type RecurrentPreTrace struct {
	Draw uint16
}

// RecurrentPostTrace records the post window draw and the membrane voltage
// at the post spike.
type RecurrentPostTrace struct {
	Draw    uint16
	Voltage int32
}

// Recurrent is an accumulator-gated rule. Coincidences inside a (possibly
// random) window move a bounded per-synapse accumulator; crossing a
// threshold applies one full weight step and locks the synapse until
// the next cycle reset.
type Recurrent struct {
	RecurrentParams
	rng *rand.Rand
}

func NewRecurrent(params RecurrentParams) *Recurrent {
	s := params.Seed
	src := rand.NewPCG(uint64(s[0])<<32|uint64(s[1]), uint64(s[2])<<32|uint64(s[3]))
	return &Recurrent{RecurrentParams: params, rng: rand.New(src)}
}

// ReadRecurrent decodes the recurrent parameter block.
func ReadRecurrent(c blob.Cursor) (*Recurrent, blob.Cursor, error) {
	var (
		p   RecurrentParams
		err error
	)
	if p.AccumDecayPerTS, c, err = c.ReadI32(); err != nil {
		return nil, c, fmt.Errorf("accum_decay_per_ts: %w", err)
	}
	for i := range p.Groups {
		g := &p.Groups[i]
		for _, f := range []*int32{&g.AccumDepPlusOne, &g.AccumPotMinusOne, &g.PreWindowTC, &g.PostWindowTC} {
			if *f, c, err = c.ReadI32(); err != nil {
				return nil, c, fmt.Errorf("recurrent group %d: %w", i, err)
			}
		}
	}
	var random uint32
	if random, c, err = c.ReadU32(); err != nil {
		return nil, c, fmt.Errorf("random_enabled: %w", err)
	}
	p.RandomEnabled = random != 0
	if p.VThresh, c, err = c.ReadI32(); err != nil {
		return nil, c, fmt.Errorf("v_thresh: %w", err)
	}
	for _, tables := range []*[RecurrentGroups]*lut.DecayLUT{&p.PreWindows, &p.PostWindows} {
		for i := range tables {
			if tables[i], c, err = lut.ReadSized(c, RecurrentWindowTableSize, RecurrentWindowTableShift); err != nil {
				return nil, c, fmt.Errorf("window table %d: %w", i, err)
			}
		}
	}
	for i := range p.Seed {
		if p.Seed[i], c, err = c.ReadU32(); err != nil {
			return nil, c, fmt.Errorf("seed: %w", err)
		}
	}
	return NewRecurrent(p), c, nil
}

// Encode writes p in the layout read by ReadRecurrent. Missing window
// tables are written as fixed windows of the group's time constants.
func (p RecurrentParams) Encode(w *blob.Writer) {
	w.PutI32(p.AccumDecayPerTS)
	for _, g := range p.Groups {
		w.PutI32(g.AccumDepPlusOne)
		w.PutI32(g.AccumPotMinusOne)
		w.PutI32(g.PreWindowTC)
		w.PutI32(g.PostWindowTC)
	}
	random := uint32(0)
	if p.RandomEnabled {
		random = 1
	}
	w.PutU32(random)
	w.PutI32(p.VThresh)
	for side, tables := range [][RecurrentGroups]*lut.DecayLUT{p.PreWindows, p.PostWindows} {
		for i, table := range tables {
			if table == nil {
				tc := p.Groups[i].PreWindowTC
				if side == 1 {
					tc = p.Groups[i].PostWindowTC
				}
				table = constantWindowTable(tc)
			}
			table.EncodeValues(w)
		}
	}
	for _, s := range p.Seed {
		w.PutU32(s)
	}
}

func constantWindowTable(tc int32) *lut.DecayLUT {
	values := make([]int16, RecurrentWindowTableSize)
	for i := range values {
		values[i] = int16(fixed.Clamp(tc, 0, 1<<15-1))
	}
	table, _ := lut.New(values, RecurrentWindowTableShift)
	return table
}

func (r *Recurrent) Name() string { return NameRecurrent }

func (r *Recurrent) Structure() Structure { return WeightAccumulator{} }

func group(synapseType uint32) int {
	return int(synapseType % RecurrentGroups)
}

func (r *Recurrent) preWindow(synapseType uint32, draw uint16) uint32 {
	g := group(synapseType)
	if r.RandomEnabled {
		return uint32(r.PreWindows[g].Lookup(uint32(draw)))
	}
	return uint32(max(r.Groups[g].PreWindowTC, 0))
}

func (r *Recurrent) postWindow(synapseType uint32, draw uint16) uint32 {
	g := group(synapseType)
	if r.RandomEnabled {
		return uint32(r.PostWindows[g].Lookup(uint32(draw)))
	}
	return uint32(max(r.Groups[g].PostWindowTC, 0))
}

func (r *Recurrent) draw() uint16 {
	return uint16(r.rng.Uint32())
}

func (r *Recurrent) InitialPostTrace() RecurrentPostTrace { return RecurrentPostTrace{} }

func (r *Recurrent) AddPostSpike(_, _ uint32, _ RecurrentPostTrace) RecurrentPostTrace {
	return RecurrentPostTrace{Draw: r.draw()}
}

func (r *Recurrent) AddPostSpikeSample(_, _ uint32, _ RecurrentPostTrace, sample PostSample) RecurrentPostTrace {
	return RecurrentPostTrace{Draw: r.draw(), Voltage: sample.Voltage}
}

func (r *Recurrent) AddPreSpike(_, _ uint32, _ RecurrentPreTrace) RecurrentPreTrace {
	return RecurrentPreTrace{Draw: r.draw()}
}

// ApplyPreSpike decays the accumulator, counts a post-before-pre coincidence
// towards depression and opens the pre window.
func (r *Recurrent) ApplyPreSpike(time uint32, _ RecurrentPreTrace, lastPreTime uint32, _ RecurrentPreTrace, lastPostTime uint32, lastPostTrace RecurrentPostTrace, state UpdateState) UpdateState {
	if state.Phase == Locked {
		return state
	}
	if state.LastPreValid {
		if dt, ok := elapsed(time, lastPreTime); ok {
			state.Accumulator = r.decayAccumulator(state.Accumulator, dt)
		}
	}
	if state.LastPostValid {
		if sinceLastPost, ok := elapsed(time, lastPostTime); ok && sinceLastPost <= r.postWindow(state.SynapseType, lastPostTrace.Draw) {
			state.Accumulator--
			if state.Accumulator < r.Groups[group(state.SynapseType)].AccumDepPlusOne {
				state.Weight = state.Weight.ApplyDepression(fixed.One)
				state.Accumulator = 0
				state.Phase = Locked
				return state
			}
		}
	}
	state.Phase = PreWaitingPost
	return state
}

// ApplyPostSpike counts a pre-before-post coincidence inside the open pre
// window towards potentiation, gated on the voltage at the post spike.
func (r *Recurrent) ApplyPostSpike(time uint32, trace RecurrentPostTrace, lastPreTime uint32, lastPreTrace RecurrentPreTrace, _ uint32, _ RecurrentPostTrace, state UpdateState) UpdateState {
	if state.Phase != PreWaitingPost {
		return state
	}
	state.Phase = Idle
	sinceLastPre, ok := elapsed(time, lastPreTime)
	if !ok || sinceLastPre > r.preWindow(state.SynapseType, lastPreTrace.Draw) {
		return state
	}
	if trace.Voltage >= r.VThresh {
		return state
	}
	state.Accumulator++
	if state.Accumulator > r.Groups[group(state.SynapseType)].AccumPotMinusOne {
		state.Weight = state.Weight.ApplyPotentiation(fixed.One)
		state.Accumulator = 0
		state.Phase = Locked
	}
	return state
}

func (r *Recurrent) decayAccumulator(acc int32, dt uint32) int32 {
	if acc == 0 || r.AccumDecayPerTS <= 0 {
		return acc
	}
	step := int32((int64(dt) * int64(r.AccumDecayPerTS)) >> fixed.AccumFractionalBits)
	if acc > 0 {
		return max(acc-step, 0)
	}
	return min(acc+step, 0)
}

func (r *Recurrent) EncodePreTrace(t RecurrentPreTrace) uint32 { return uint32(t.Draw) }

func (r *Recurrent) DecodePreTrace(w uint32) RecurrentPreTrace {
	return RecurrentPreTrace{Draw: uint16(w)}
}
