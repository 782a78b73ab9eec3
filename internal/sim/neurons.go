package sim

import (
	"math"

	"stdpengine/internal/fixed"
	"stdpengine/internal/timing"
)

// Neurons is a leaky integrate-and-fire population driven by the ring buffer
// input. It is the neuron model sampled by the plasticity engine.
type Neurons struct {
	voltage       []float64
	rate          []float64
	dendriticRate []float64
	// spikeVoltage is the integrated voltage of the last step, before reset.
	spikeVoltage []float64
	spiked       []bool
	params       NeuronParams
}

// NeuronParams are in millivolts, and spikes per timestep for rates.
type NeuronParams struct {
	VRest      float64 `json:"v_rest"`
	VReset     float64 `json:"v_reset"`
	VThresh    float64 `json:"v_thresh"`
	Leak       float64 `json:"leak"`
	InputScale float64 `json:"input_scale"`
	TargetRate float64 `json:"target_rate"`
	// RateDecay is the smoothing factor of the rate estimates.
	RateDecay float64 `json:"rate_decay"`
}

func DefaultNeuronParams() NeuronParams {
	return NeuronParams{
		VRest:      -65,
		VReset:     -70,
		VThresh:    -50,
		Leak:       0.9,
		InputScale: 0.002,
		TargetRate: 0.02,
		RateDecay:  0.95,
	}
}

func NewNeurons(n int, params NeuronParams) *Neurons {
	ns := &Neurons{
		voltage:       make([]float64, n),
		rate:          make([]float64, n),
		dendriticRate: make([]float64, n),
		spikeVoltage:  make([]float64, n),
		spiked:        make([]bool, n),
		params:        params,
	}
	for i := range ns.voltage {
		ns.voltage[i] = params.VRest
	}
	return ns
}

func (n *Neurons) Len() int {
	return len(n.voltage)
}

// Step integrates input (in weight units) into neuron i and reports whether
// it spiked. Until the next Step of i, Sample reports the voltage reached
// before the reset.
func (n *Neurons) Step(i int, input int64, forced bool) bool {
	p := n.params
	v := p.VRest + (n.voltage[i]-p.VRest)*p.Leak + float64(input)*p.InputScale
	drive := math.Max(0, (v-p.VRest)/(p.VThresh-p.VRest))
	n.dendriticRate[i] = n.dendriticRate[i]*p.RateDecay + math.Min(drive, 1)*(1-p.RateDecay)
	spiked := forced || v >= p.VThresh
	n.spiked[i] = spiked
	n.spikeVoltage[i] = v
	if spiked {
		v = p.VReset
	}
	n.voltage[i] = v
	n.rate[i] *= p.RateDecay
	if spiked {
		n.rate[i] += 1 - p.RateDecay
	}
	return spiked
}

func (n *Neurons) Sample(index uint32) timing.PostSample {
	i := int(index)
	if i >= len(n.voltage) {
		return timing.PostSample{}
	}
	toAccum := func(v float64) int32 {
		return fixed.FromFloat(v, fixed.AccumFractionalBits)
	}
	voltage := n.voltage[i]
	if n.spiked[i] {
		voltage = n.spikeVoltage[i]
	}
	return timing.PostSample{
		Voltage:       toAccum(voltage),
		Rate:          toAccum(n.rate[i]),
		TargetRate:    toAccum(n.params.TargetRate),
		DendriticRate: toAccum(n.dendriticRate[i]),
		Error:         toAccum(n.rate[i] - n.params.TargetRate),
	}
}
