package config

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"

	"stdpengine/internal/blob"
	"stdpengine/internal/fixed"
	"stdpengine/internal/lut"
	"stdpengine/internal/timing"
	"stdpengine/internal/weight"
)

// Blob compiles the configuration into the word-addressed parameter blob.
func (e Engine) Blob() ([]byte, error) {
	e.Rule = timing.NormalizeRuleName(e.Rule)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	tag, _ := timing.TagForName(e.Rule)
	kind, _ := weight.ParseKind(e.WeightKind)

	var w blob.Writer
	w.PutU32(uint32(tag))
	w.PutU32(uint32(kind))
	w.PutU32(e.AxonalDelayBits)
	w.PutU32(e.DendriticDelayBits)
	if err := e.encodeRule(&w); err != nil {
		return nil, err
	}
	regions, err := e.WeightRegions()
	if err != nil {
		return nil, err
	}
	weight.EncodeRegions(&w, regions)
	return w.Bytes(), nil
}

// Table generates the decay table for tau with the configured size, shift
// and timestep.
func (e Engine) Table(tau float32) (*lut.DecayLUT, error) {
	return lut.Generate(tau, e.TimestepMS, e.LUTSize, e.LUTShift)
}

func (e Engine) encodeTables(w *blob.Writer, taus ...float32) error {
	for _, tau := range taus {
		table, err := e.Table(tau)
		if err != nil {
			return err
		}
		table.Encode(w)
	}
	return nil
}

func (e Engine) encodeRule(w *blob.Writer) error {
	switch e.Rule {
	case timing.NamePair, timing.NameNearestPair:
		return e.encodeTables(w, e.TauPlus, e.TauMinus)
	case timing.NameVogels2011:
		w.PutI32(fixed.FromFloat(e.Alpha, fixed.STDPFixedPoint))
		return e.encodeTables(w, e.TauPlus)
	case timing.NamePfisterTriplet:
		return e.encodeTables(w, e.TauPlus, e.TauMinus, e.TauX, e.TauY)
	case timing.NameRecurrent:
		params, err := e.RecurrentParams()
		if err != nil {
			return err
		}
		params.Encode(w)
		return nil
	case timing.NameErbp:
		if err := e.encodeTables(w, e.TauPlus); err != nil {
			return err
		}
		w.PutI32(fixed.FromFloat(e.Erbp.VCenter, fixed.AccumFractionalBits))
		w.PutI32(fixed.FromFloat(e.Erbp.VHalfWidth, fixed.AccumFractionalBits))
		return nil
	case timing.NameTarget, timing.NameRatePyramidal:
		return e.encodeTables(w, e.TauPlus)
	case timing.NameDopaminePair:
		return e.encodeTables(w, e.TauPlus, e.TauMinus, e.TauC, e.TauD)
	default:
		return fmt.Errorf("no encoder for timing rule %q", e.Rule)
	}
}

// WeightRegions converts the configured regions to fixed point. Soft-bound
// factors get as many fractional bits as the resolved weight shift.
func (e Engine) WeightRegions() ([]weight.Region, error) {
	kind, err := weight.ParseKind(e.WeightKind)
	if err != nil {
		return nil, err
	}
	regions := make([]weight.Region, len(e.Regions))
	for i, r := range e.Regions {
		var shift uint32
		switch {
		case r.Shift != nil:
			shift = *r.Shift
		case i < len(e.RingBufferShifts):
			shift = weight.ShiftForRingBuffer(e.RingBufferShifts[i])
		}
		factor := func(a float64) int32 {
			if kind == weight.Additive || kind == weight.AdditiveTwoTerm {
				return int32(math.Round(a))
			}
			return fixed.FromFloat(a, uint(shift))
		}
		regions[i] = weight.Region{
			Kind:    kind,
			Min:     r.MinWeight,
			Max:     r.MaxWeight,
			A2Plus:  factor(r.A2Plus),
			A2Minus: factor(r.A2Minus),
			A3Plus:  factor(r.A3Plus),
			A3Minus: factor(r.A3Minus),
			Shift:   shift,
		}
		if err := regions[i].Validate(); err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
	}
	return regions, nil
}

// RecurrentParams converts the recurrent section. Random window tables map
// a uniform draw to an exponentially distributed window with the group's
// mean length.
func (e Engine) RecurrentParams() (timing.RecurrentParams, error) {
	rec := e.Recurrent
	p := timing.RecurrentParams{
		AccumDecayPerTS: fixed.FromFloat(rec.AccumDecayPerTS, fixed.AccumFractionalBits),
		RandomEnabled:   rec.RandomEnabled,
		VThresh:         fixed.FromFloat(rec.VThresh, fixed.AccumFractionalBits),
		Seed:            rec.Seed,
	}
	for i, g := range rec.Groups {
		p.Groups[i] = timing.RecurrentGroup{
			AccumDepPlusOne:  g.DepPlusOne,
			AccumPotMinusOne: g.PotMinusOne,
			PreWindowTC:      int32(math32.Round(g.PreWindow)),
			PostWindowTC:     int32(math32.Round(g.PostWindow)),
		}
		var err error
		if p.PreWindows[i], err = windowTable(g.PreWindow); err != nil {
			return p, err
		}
		if p.PostWindows[i], err = windowTable(g.PostWindow); err != nil {
			return p, err
		}
	}
	return p, nil
}

func windowTable(mean float32) (*lut.DecayLUT, error) {
	values := make([]int16, timing.RecurrentWindowTableSize)
	for i := range values {
		u := (float32(i) + 0.5) / float32(len(values))
		length := math32.Round(-mean * math32.Log(1-u))
		values[i] = int16(fixed.Clamp(int32(length), 0, math.MaxInt16))
	}
	return lut.New(values, timing.RecurrentWindowTableShift)
}
