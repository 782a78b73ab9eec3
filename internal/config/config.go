// Package config holds the host-side engine configuration and compiles it
// into the configuration blob read by dynamics.Initialise.
package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"golang.org/x/crypto/sha3"

	"stdpengine/internal/synapse"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
)

// Region is the per-synapse-type weight configuration. Min and Max are in
// weight units. The a2/a3 factors are fractions for soft-bound kinds and
// weight units per unit trace for additive kinds.
type Region struct {
	MinWeight int32   `json:"min_weight"`
	MaxWeight int32   `json:"max_weight"`
	A2Plus    float64 `json:"a2_plus"`
	A2Minus   float64 `json:"a2_minus"`
	A3Plus    float64 `json:"a3_plus,omitempty"`
	A3Minus   float64 `json:"a3_minus,omitempty"`
	// Shift overrides the weight_multiply_right_shift derived from the
	// type's ring buffer shift. Zero is a valid override.
	Shift *uint32 `json:"shift,omitempty"`
}

// RecurrentGroup configures one synapse type group of the recurrent rule.
type RecurrentGroup struct {
	DepPlusOne  int32 `json:"accum_dep_plus_one"`
	PotMinusOne int32 `json:"accum_pot_minus_one"`
	// PreWindow and PostWindow are mean window lengths in timesteps.
	PreWindow  float32 `json:"pre_window"`
	PostWindow float32 `json:"post_window"`
}

type Recurrent struct {
	AccumDecayPerTS float64           `json:"accum_decay_per_ts"`
	Groups          [4]RecurrentGroup `json:"groups"`
	RandomEnabled   bool              `json:"random_enabled"`
	VThresh         float64           `json:"v_thresh"`
	Seed            [4]uint32         `json:"seed"`
}

type Erbp struct {
	VCenter    float64 `json:"v_center"`
	VHalfWidth float64 `json:"v_half_width"`
}

// Engine is the full plasticity engine configuration.
type Engine struct {
	Rule               string   `json:"rule"`
	WeightKind         string   `json:"weight_kind"`
	Neurons            int      `json:"neurons"`
	SynapseTypes       int      `json:"synapse_types"`
	RingBufferShifts   []uint32 `json:"ring_buffer_shifts"`
	AxonalDelayBits    uint32   `json:"axonal_delay_bits"`
	DendriticDelayBits uint32   `json:"dendritic_delay_bits"`

	// Time constants share the unit of TimestepMS.
	TimestepMS float32 `json:"timestep_ms"`
	LUTSize    int     `json:"lut_size"`
	LUTShift   uint32  `json:"lut_shift"`
	TauPlus    float32 `json:"tau_plus"`
	TauMinus   float32 `json:"tau_minus"`
	TauX       float32 `json:"tau_x"`
	TauY       float32 `json:"tau_y"`
	TauC       float32 `json:"tau_c"`
	TauD       float32 `json:"tau_d"`
	// Alpha is the Vogels homeostatic offset in units of one spike trace.
	Alpha float64 `json:"alpha"`

	Recurrent Recurrent `json:"recurrent"`
	Erbp      Erbp      `json:"erbp"`
	Regions   []Region  `json:"regions"`
}

// Default returns a pair-rule configuration for a small population.
func Default() Engine {
	var rec Recurrent
	for i := range rec.Groups {
		rec.Groups[i] = RecurrentGroup{DepPlusOne: -3, PotMinusOne: 3, PreWindow: 20, PostWindow: 20}
	}
	rec.AccumDecayPerTS = 0.01
	rec.VThresh = -50
	rec.Seed = [4]uint32{0x1234, 0x5678, 0x9abc, 0xdef0}
	return Engine{
		Rule:               timing.NamePair,
		WeightKind:         weight.SoftBound.String(),
		Neurons:            16,
		SynapseTypes:       2,
		RingBufferShifts:   []uint32{7, 7},
		AxonalDelayBits:    0,
		DendriticDelayBits: 4,
		TimestepMS:         1,
		LUTSize:            256,
		LUTShift:           0,
		TauPlus:            16.8,
		TauMinus:           33.7,
		TauX:               101,
		TauY:               125,
		TauC:               1000,
		TauD:               200,
		Alpha:              0.2,
		Recurrent:          rec,
		Erbp:               Erbp{VCenter: -55, VHalfWidth: 10},
		Regions: []Region{
			{MinWeight: 0, MaxWeight: 4096, A2Plus: 0.1, A2Minus: 0.12, A3Plus: 0.05, A3Minus: 0.05},
			{MinWeight: 0, MaxWeight: 4096, A2Plus: 0.1, A2Minus: 0.12, A3Plus: 0.05, A3Minus: 0.05},
		},
	}
}

// Load reads a JSON configuration over the defaults.
func Load(path string) (Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Engine{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Engine, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Engine{}, fmt.Errorf("decode engine config: %w", err)
	}
	cfg.Rule = timing.NormalizeRuleName(cfg.Rule)
	if err := cfg.Validate(); err != nil {
		return Engine{}, err
	}
	return cfg, nil
}

func (e Engine) Validate() error {
	if _, err := timing.TagForName(e.Rule); err != nil {
		return err
	}
	kind, err := weight.ParseKind(e.WeightKind)
	if err != nil {
		return err
	}
	if e.Rule == timing.NamePfisterTriplet && !kind.TwoTerm() {
		return fmt.Errorf("rule %s needs a two-term weight kind, got %s", e.Rule, kind)
	}
	if _, err := synapse.NewLayout(e.Neurons, e.SynapseTypes, e.DendriticDelayBits, e.AxonalDelayBits); err != nil {
		return err
	}
	if len(e.RingBufferShifts) != e.SynapseTypes {
		return fmt.Errorf("ring_buffer_shifts has %d entries for %d synapse types", len(e.RingBufferShifts), e.SynapseTypes)
	}
	if len(e.Regions) != e.SynapseTypes {
		return fmt.Errorf("regions has %d entries for %d synapse types", len(e.Regions), e.SynapseTypes)
	}
	for i, r := range e.Regions {
		if r.MinWeight < 0 || r.MaxWeight > timing.MaxStoredWeight || r.MinWeight > r.MaxWeight {
			return fmt.Errorf("region %d: invalid weight range [%d, %d]", i, r.MinWeight, r.MaxWeight)
		}
	}
	for i, g := range e.Recurrent.Groups {
		if !fitsAccumulator(g.DepPlusOne) || !fitsAccumulator(g.PotMinusOne) {
			return fmt.Errorf("recurrent group %d: accumulator thresholds [%d, %d] must fit [%d, %d]",
				i, g.DepPlusOne, g.PotMinusOne, math.MinInt8, math.MaxInt8)
		}
	}
	if e.TimestepMS <= 0 {
		return fmt.Errorf("timestep_ms must be > 0, got %v", e.TimestepMS)
	}
	if e.LUTSize <= 0 || e.LUTSize > 0xFFFF {
		return fmt.Errorf("lut_size must be in [1, 65535], got %d", e.LUTSize)
	}
	return nil
}

// fitsAccumulator reports whether v is reachable by the int8 stored accumulator.
func fitsAccumulator(v int32) bool {
	return v >= math.MinInt8 && v <= math.MaxInt8
}

// Fingerprint identifies a configuration blob.
func Fingerprint(blob []byte) string {
	sum := sha3.Sum256(blob)
	return hex.EncodeToString(sum[:])
}
