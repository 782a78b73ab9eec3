// Package sim drives a plasticity engine with random spike trains. Each
// timestep drains the ring buffer into a neuron population, records post
// and neuromodulator events, then processes the rows of the pre-synaptic
// neurons that fired.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"stdpengine/internal/dynamics"
	"stdpengine/internal/fixed"
	"stdpengine/internal/ring"
	"stdpengine/internal/synapse"
	"stdpengine/internal/timing"
)

type Config struct {
	Timesteps      uint32  `json:"timesteps"`
	PreNeurons     int     `json:"pre_neurons"`
	SynapsesPerRow int     `json:"synapses_per_row"`
	InitialWeight  int32   `json:"initial_weight"`
	PreRate        float64 `json:"pre_rate"`
	PostRate       float64 `json:"post_rate"`
	RewardRate     float64 `json:"reward_rate"`
	// RewardConcentration is the neuromodulator level of one reward event.
	RewardConcentration float64 `json:"reward_concentration"`
	// CycleLength resets recurrent locks every CycleLength timesteps; zero
	// never resets.
	CycleLength uint32       `json:"cycle_length"`
	Seed        int64        `json:"seed"`
	Neuron      NeuronParams `json:"neuron"`
}

func DefaultConfig() Config {
	return Config{
		Timesteps:           1000,
		PreNeurons:          32,
		SynapsesPerRow:      8,
		InitialWeight:       1024,
		PreRate:             0.02,
		PostRate:            0.01,
		RewardConcentration: 1,
		Seed:                1,
		Neuron:              DefaultNeuronParams(),
	}
}

func (c Config) Validate() error {
	if c.Timesteps == 0 {
		return errors.New("timesteps must be > 0")
	}
	if c.PreNeurons <= 0 {
		return fmt.Errorf("pre_neurons must be > 0, got %d", c.PreNeurons)
	}
	if c.SynapsesPerRow <= 0 {
		return fmt.Errorf("synapses_per_row must be > 0, got %d", c.SynapsesPerRow)
	}
	for name, p := range map[string]float64{"pre_rate": c.PreRate, "post_rate": c.PostRate, "reward_rate": c.RewardRate} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, p)
		}
	}
	if c.InitialWeight < 0 || c.InitialWeight > timing.MaxStoredWeight {
		return fmt.Errorf("initial_weight %d does not fit a plastic word", c.InitialWeight)
	}
	return nil
}

// Result summarises a finished simulation.
type Result struct {
	Timesteps    uint32         `json:"timesteps"`
	PreSpikes    uint64         `json:"pre_spikes"`
	PostSpikes   uint64         `json:"post_spikes"`
	RewardEvents uint64         `json:"reward_events"`
	Stats        dynamics.Stats `json:"stats"`
	Weights      []int32        `json:"weights"`
	MeanWeight   float64        `json:"mean_weight"`
	MinWeight    int32          `json:"min_weight"`
	MaxWeight    int32          `json:"max_weight"`
}

// BuildRows creates one row per pre-synaptic neuron with random targets,
// types and delays.
func BuildRows(layout synapse.Layout, nNeurons, nTypes int, cfg Config, rng *rand.Rand) ([]*synapse.Row, error) {
	rows := make([]*synapse.Row, cfg.PreNeurons)
	// total delay stays within one turn of the ring so no contribution
	// lands in a slot that was already drained
	maxAxonal := min(1<<layout.AxonalDelayBits, int(layout.DelayMask()))
	maxDendritic := max(int(layout.DelayMask())-(maxAxonal-1), 1)
	for i := range rows {
		plastic := make([]uint32, cfg.SynapsesPerRow)
		controls := make([]uint32, cfg.SynapsesPerRow)
		for j := range controls {
			plastic[j] = uint32(uint16(cfg.InitialWeight))
			controls[j] = layout.Encode(synapse.Control{
				Index:          uint32(rng.Intn(nNeurons)),
				Type:           uint32(rng.Intn(nTypes)),
				DendriticDelay: uint32(1 + rng.Intn(maxDendritic)),
				AxonalDelay:    uint32(rng.Intn(maxAxonal)),
			})
		}
		row, err := synapse.NewRow(plastic, controls)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// Run simulates cfg.Timesteps steps of d, starting at time 1.
func Run(ctx context.Context, d dynamics.Dynamics, neurons *Neurons, rows []*synapse.Row, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if neurons.Len() != d.NumNeurons() {
		return Result{}, fmt.Errorf("neuron population %d does not match engine %d", neurons.Len(), d.NumNeurons())
	}
	layout := d.Layout()
	rings, err := ring.New(layout.RingBufferSize())
	if err != nil {
		return Result{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	concentration := fixed.FromFloat(cfg.RewardConcentration, fixed.AccumFractionalBits)
	slots := 1 << layout.TypeIndexBits()
	input := make([]int64, d.NumNeurons())

	var result Result
	for t := uint32(1); t <= cfg.Timesteps; t++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		clear(input)
		drained := rings.Drain(int(layout.RingIndex(t, 0)), slots)
		for typeIndex, v := range drained {
			if idx := int(layout.Index(uint32(typeIndex))); v != 0 && idx < len(input) {
				input[idx] += int64(v)
			}
		}

		for n := 0; n < d.NumNeurons(); n++ {
			if neurons.Step(n, input[n], rng.Float64() < cfg.PostRate) {
				if err := d.ProcessPostSynapticEvent(t, uint32(n)); err != nil {
					return Result{}, err
				}
				result.PostSpikes++
				continue
			}
			if cfg.RewardRate > 0 && rng.Float64() < cfg.RewardRate {
				if err := d.ProcessNeuromodulatorEvent(t, uint32(n), concentration); err != nil {
					return Result{}, err
				}
				result.RewardEvents++
			}
		}

		for _, row := range rows {
			if rng.Float64() >= cfg.PreRate {
				continue
			}
			if err := d.ProcessPlasticRow(row, rings, t); err != nil {
				return Result{}, err
			}
			result.PreSpikes++
		}

		if cfg.CycleLength > 0 && t%cfg.CycleLength == 0 {
			for _, row := range rows {
				d.ResetLocks(row)
			}
		}
	}

	result.Timesteps = cfg.Timesteps
	result.Stats = d.Stats()
	summarise(&result, rows)
	return result, nil
}

func summarise(result *Result, rows []*synapse.Row) {
	var sum int64
	for _, row := range rows {
		for _, word := range row.Plastic {
			w := timing.StoredWeight(word)
			if len(result.Weights) == 0 || w < result.MinWeight {
				result.MinWeight = w
			}
			if len(result.Weights) == 0 || w > result.MaxWeight {
				result.MaxWeight = w
			}
			result.Weights = append(result.Weights, w)
			sum += int64(w)
		}
	}
	if len(result.Weights) > 0 {
		result.MeanWeight = float64(sum) / float64(len(result.Weights))
	}
}
