package dynamics

import (
	"fmt"

	"stdpengine/internal/fixed"
	"stdpengine/internal/history"
	"stdpengine/internal/ring"
	"stdpengine/internal/synapse"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
)

// engine is the processor specialised to one rule's trace types.
type engine[Pre, Post any] struct {
	rule      timing.Rule[Pre, Post]
	structure timing.Structure
	sampler   timing.SampleTracer[Post]
	modulated timing.Neuromodulated[Pre, Post]

	layout    synapse.Layout
	regions   []weight.Region
	histories *history.Store[Post]
	neurons   NeuronState
	metrics   *Metrics
	stats     Stats
}

func newEngine[Pre, Post any](rule timing.Rule[Pre, Post], env environment) (*engine[Pre, Post], error) {
	histories, err := history.NewStore(env.nNeurons, rule.InitialPostTrace())
	if err != nil {
		return nil, err
	}
	e := &engine[Pre, Post]{
		rule:      rule,
		structure: rule.Structure(),
		layout:    env.layout,
		regions:   env.regions,
		histories: histories,
		neurons:   env.neurons,
		metrics:   env.metrics,
	}
	if s, ok := any(rule).(timing.SampleTracer[Post]); ok {
		e.sampler = s
	}
	if m, ok := any(rule).(timing.Neuromodulated[Pre, Post]); ok {
		e.modulated = m
	}
	return e, nil
}

func (e *engine[Pre, Post]) RuleName() string { return e.rule.Name() }

func (e *engine[Pre, Post]) Layout() synapse.Layout { return e.layout }

func (e *engine[Pre, Post]) NumNeurons() int { return e.histories.Len() }

func (e *engine[Pre, Post]) Regions() []weight.Region {
	return append([]weight.Region(nil), e.regions...)
}

func (e *engine[Pre, Post]) Stats() Stats { return e.stats }

func (e *engine[Pre, Post]) checkNeuron(neuron uint32) error {
	if int(neuron) >= e.histories.Len() {
		return fmt.Errorf("%w: %d >= %d", ErrNeuronIndex, neuron, e.histories.Len())
	}
	return nil
}

func (e *engine[Pre, Post]) checkRow(row *synapse.Row, rings *ring.Buffers) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if rings.Len() < e.layout.RingBufferSize() {
		return fmt.Errorf("%w: %d < %d", ErrRingBuffer, rings.Len(), e.layout.RingBufferSize())
	}
	for _, control := range row.Controls {
		if err := e.checkNeuron(e.layout.Index(control)); err != nil {
			return err
		}
		if t := e.layout.Type(control); int(t) >= len(e.regions) {
			return fmt.Errorf("%w: %d >= %d", ErrSynapseType, t, len(e.regions))
		}
	}
	return nil
}

// ProcessPlasticRow rejects a malformed row before touching it; once the
// row is accepted every synapse is processed.
func (e *engine[Pre, Post]) ProcessPlasticRow(row *synapse.Row, rings *ring.Buffers, time uint32) error {
	if err := e.checkRow(row, rings); err != nil {
		return err
	}

	lastPreTime := row.PreTime
	lastPreTrace := e.rule.DecodePreTrace(row.PreTrace)
	newPreTrace := e.rule.AddPreSpike(time, lastPreTime, lastPreTrace)
	row.PreTime = time
	row.PreTrace = e.rule.EncodePreTrace(newPreTrace)

	pre := preSpike[Pre]{
		time:      time,
		trace:     newPreTrace,
		lastTime:  lastPreTime,
		lastTrace: lastPreTrace,
		lastValid: lastPreTime > 0,
	}
	for i, control := range row.Controls {
		c := e.layout.Decode(control)
		state := e.processSynapse(row.Plastic[i], c, pre)
		row.Plastic[i] = e.structure.Encode(state)

		idx := e.layout.RingIndex(time+c.AxonalDelay+c.DendriticDelay, c.TypeIndex)
		sat := rings.Add(idx, state.Weight.Final())
		switch sat {
		case fixed.Overflow:
			e.stats.RingOverflows++
		case fixed.Underflow:
			e.stats.RingUnderflows++
		}
		e.metrics.observeSaturation(sat)
	}
	e.stats.Rows++
	e.stats.PlasticSynapses += uint64(row.Len())
	e.metrics.observeRow(row.Len())
	return nil
}

type preSpike[Pre any] struct {
	time      uint32
	trace     Pre
	lastTime  uint32
	lastTrace Pre
	lastValid bool
}

// floorSub returns a-b, or 0 when b > a.
func floorSub(a, b uint32) uint32 {
	if b > a {
		return 0
	}
	return a - b
}

// processSynapse replays the post events that reached the dendrite since the
// previous pre spike, then applies the current pre spike.
func (e *engine[Pre, Post]) processSynapse(word uint32, c synapse.Control, pre preSpike[Pre]) timing.UpdateState {
	delayedLastPre := pre.lastTime + c.AxonalDelay
	delayedTime := pre.time + c.AxonalDelay

	state := e.structure.Decode(word, &e.regions[c.Type])
	state.SynapseType = c.Type
	state.Post = e.neurons.Sample(c.Index)
	state.LastPreValid = pre.lastValid
	state.LastUpdateTime = delayedLastPre

	h := e.histories.Get(c.Index)
	window := h.Window(floorSub(delayedLastPre, c.DendriticDelay), floorSub(delayedTime, c.DendriticDelay))
	for ; window.NumEvents() > 0; window = window.Next() {
		state.LastPostValid = window.PrevTimeValid()
		postTime := window.NextTime() + c.DendriticDelay
		if window.NextIsDopamine() {
			if e.modulated != nil {
				state = e.modulated.ApplyDopamine(postTime, window.NextTrace(), delayedLastPre, pre.lastTrace, state)
			}
			continue
		}
		state = e.rule.ApplyPostSpike(postTime, window.NextTrace(), delayedLastPre, pre.lastTrace,
			window.PrevTime()+c.DendriticDelay, window.PrevTrace(), state)
	}

	state.LastPostValid = window.PrevTimeValid()
	return e.rule.ApplyPreSpike(delayedTime, pre.trace, delayedLastPre, pre.lastTrace,
		window.PrevTime()+c.DendriticDelay, window.PrevTrace(), state)
}

func (e *engine[Pre, Post]) ProcessPostSynapticEvent(time, neuron uint32) error {
	if err := e.checkNeuron(neuron); err != nil {
		return err
	}
	h := e.histories.Get(neuron)
	var trace Post
	if e.sampler != nil {
		trace = e.sampler.AddPostSpikeSample(time, h.LastTime(), h.LastTrace(), e.neurons.Sample(neuron))
	} else {
		trace = e.rule.AddPostSpike(time, h.LastTime(), h.LastTrace())
	}
	evicted := h.Add(time, trace)
	e.stats.PostEvents++
	if evicted {
		e.stats.HistoryEvictions++
	}
	e.metrics.observeEvent("spike", evicted)
	return nil
}

func (e *engine[Pre, Post]) ProcessNeuromodulatorEvent(time, neuron uint32, concentration int32) error {
	if e.modulated == nil {
		return fmt.Errorf("%w: %s", ErrNotNeuromodulated, e.rule.Name())
	}
	if err := e.checkNeuron(neuron); err != nil {
		return err
	}
	h := e.histories.Get(neuron)
	trace := e.modulated.AddDopamine(time, h.LastTime(), h.LastTrace(), concentration)
	evicted := h.AddDopamine(time, trace)
	e.stats.NeuromodulatorEvents++
	if evicted {
		e.stats.HistoryEvictions++
	}
	e.metrics.observeEvent("neuromodulator", evicted)
	return nil
}

func (e *engine[Pre, Post]) ResetLocks(row *synapse.Row) {
	for i, control := range row.Controls {
		if i >= len(row.Plastic) {
			return
		}
		t := e.layout.Type(control)
		if int(t) >= len(e.regions) {
			continue
		}
		state := e.structure.Decode(row.Plastic[i], &e.regions[t])
		if state.Phase != timing.Locked {
			continue
		}
		state.Phase = timing.Idle
		row.Plastic[i] = e.structure.Encode(state)
	}
}

func (e *engine[Pre, Post]) PostHistory(neuron uint32) ([]Event, error) {
	if err := e.checkNeuron(neuron); err != nil {
		return nil, err
	}
	h := e.histories.Get(neuron)
	events := make([]Event, 0, h.CountMinusOne())
	for i := 1; i <= h.CountMinusOne(); i++ {
		events = append(events, Event{
			Time:     h.Time(i),
			Dopamine: h.IsDopamine(i),
			Trace:    fmt.Sprintf("%+v", h.Trace(i)),
		})
	}
	return events, nil
}
