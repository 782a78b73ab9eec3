// Package dynamics is the per-row plastic synapse processor. It owns the
// post-synaptic event histories, replays them into the configured timing
// rule when a pre-synaptic row arrives and writes the updated weights into
// the shared ring buffers.
package dynamics

import (
	"errors"
	"fmt"

	"stdpengine/internal/blob"
	"stdpengine/internal/ring"
	"stdpengine/internal/synapse"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
)

var (
	ErrNeuronIndex       = errors.New("post-synaptic neuron index out of range")
	ErrSynapseType       = errors.New("synapse type out of range")
	ErrNotNeuromodulated = errors.New("timing rule does not accept neuromodulator events")
	ErrRingBuffer        = errors.New("ring buffers smaller than the control word layout")
)

// Event is one entry of a post-synaptic history snapshot.
type Event struct {
	Time     uint32 `json:"time"`
	Dopamine bool   `json:"dopamine,omitempty"`
	Trace    string `json:"trace"`
}

// Stats are cumulative engine counters.
type Stats struct {
	Rows                 uint64 `json:"rows"`
	PlasticSynapses      uint64 `json:"plastic_synapses"`
	PostEvents           uint64 `json:"post_events"`
	NeuromodulatorEvents uint64 `json:"neuromodulator_events"`
	HistoryEvictions     uint64 `json:"history_evictions"`
	RingOverflows        uint64 `json:"ring_overflows"`
	RingUnderflows       uint64 `json:"ring_underflows"`
}

// Dynamics is an initialised plasticity engine bound to one timing rule.
// It is not safe for concurrent use.
type Dynamics interface {
	RuleName() string
	Layout() synapse.Layout
	NumNeurons() int
	Regions() []weight.Region
	// ProcessPlasticRow handles a pre-synaptic spike at time for row. The
	// row header and plastic words are updated in place.
	ProcessPlasticRow(row *synapse.Row, rings *ring.Buffers, time uint32) error
	// ProcessPostSynapticEvent records a post-synaptic spike.
	ProcessPostSynapticEvent(time, neuron uint32) error
	// ProcessNeuromodulatorEvent records a reward event of the given S16.15
	// concentration in the history of neuron.
	ProcessNeuromodulatorEvent(time, neuron uint32, concentration int32) error
	// ResetLocks starts a new cycle for every locked synapse of row.
	ResetLocks(row *synapse.Row)
	PostHistory(neuron uint32) ([]Event, error)
	Stats() Stats
}

type options struct {
	neurons NeuronState
	metrics *Metrics
}

type Option func(*options)

// WithNeuronState sets the neuron model sampled for voltages and rates.
func WithNeuronState(neurons NeuronState) Option {
	return func(o *options) {
		o.neurons = neurons
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// environment is what a rule engine is built against.
type environment struct {
	layout   synapse.Layout
	regions  []weight.Region
	nNeurons int
	neurons  NeuronState
	metrics  *Metrics
	ruleName string
}

// Initialise reads the configuration blob and builds the engine for
// nNeurons post-synaptic neurons and nTypes synapse types. Any failure
// leaves nothing allocated.
func Initialise(config []byte, nNeurons, nTypes int, ringBufferShifts []uint32, opts ...Option) (Dynamics, error) {
	o := options{neurons: RestingNeurons{}}
	for _, opt := range opts {
		opt(&o)
	}

	c := blob.NewCursor(config)
	var (
		tag, kind, axonalBits, dendriticBits uint32
		err                                  error
	)
	for _, f := range []*uint32{&tag, &kind, &axonalBits, &dendriticBits} {
		if *f, c, err = c.ReadU32(); err != nil {
			return nil, fmt.Errorf("read configuration header: %w", err)
		}
	}
	layout, err := synapse.NewLayout(nNeurons, nTypes, dendriticBits, axonalBits)
	if err != nil {
		return nil, err
	}
	name, err := timing.NameForTag(timing.Tag(tag))
	if err != nil {
		return nil, err
	}
	reader, err := lookupRule(name)
	if err != nil {
		return nil, err
	}
	bind, c, err := reader(c)
	if err != nil {
		return nil, fmt.Errorf("read %s parameters: %w", name, err)
	}
	regions, _, err := weight.ReadRegions(c, weight.Kind(kind), nTypes, ringBufferShifts)
	if err != nil {
		return nil, err
	}
	for i, r := range regions {
		if r.Min < 0 || r.Max > timing.MaxStoredWeight {
			return nil, fmt.Errorf("weight region %d: [%d, %d] does not fit a plastic word", i, r.Min, r.Max)
		}
	}
	return bind(environment{
		layout:   layout,
		regions:  regions,
		nNeurons: nNeurons,
		neurons:  o.neurons,
		metrics:  o.metrics,
		ruleName: name,
	})
}
