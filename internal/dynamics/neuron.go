package dynamics

import "stdpengine/internal/timing"

// NeuronState is the neuron model collaborator. The processor samples it for
// the post-synaptic neuron of each synapse and at each post spike.
type NeuronState interface {
	Sample(index uint32) timing.PostSample
}

// RestingNeurons reports every neuron at rest with zero rates.
type RestingNeurons struct{}

func (RestingNeurons) Sample(uint32) timing.PostSample { return timing.PostSample{} }

// NeuronSamples is a NeuronState backed by a slice indexed by neuron.
type NeuronSamples []timing.PostSample

func (s NeuronSamples) Sample(index uint32) timing.PostSample {
	if int(index) >= len(s) {
		return timing.PostSample{}
	}
	return s[index]
}
