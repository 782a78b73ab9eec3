package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one simulation run of the plasticity engine.
type RunRecord struct {
	VersionedRecord
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Rule      string    `json:"rule"`
	// ConfigFingerprint is the sha3-256 of the configuration blob.
	ConfigFingerprint string `json:"config_fingerprint"`
	// Engine and Simulation are the JSON configurations the run used.
	Engine     []byte   `json:"engine"`
	Simulation []byte   `json:"simulation"`
	Stats      RunStats `json:"stats"`
}

type RunStats struct {
	Timesteps            uint32  `json:"timesteps"`
	PreSpikes            uint64  `json:"pre_spikes"`
	PostSpikes           uint64  `json:"post_spikes"`
	RewardEvents         uint64  `json:"reward_events"`
	Rows                 uint64  `json:"rows"`
	PlasticSynapses      uint64  `json:"plastic_synapses"`
	HistoryEvictions     uint64  `json:"history_evictions"`
	RingOverflows        uint64  `json:"ring_overflows"`
	RingUnderflows       uint64  `json:"ring_underflows"`
	MeanWeight           float64 `json:"mean_weight"`
	MinWeight            int32   `json:"min_weight"`
	MaxWeight            int32   `json:"max_weight"`
	NeuromodulatorEvents uint64  `json:"neuromodulator_events"`
}

// HistoryEvent is one post-synaptic history entry.
type HistoryEvent struct {
	Time     uint32 `json:"time"`
	Dopamine bool   `json:"dopamine,omitempty"`
	Trace    string `json:"trace"`
}

// HistorySnapshot is the post-synaptic history of one neuron at the end of a
// run.
type HistorySnapshot struct {
	VersionedRecord
	Neuron uint32         `json:"neuron"`
	Events []HistoryEvent `json:"events"`
}
