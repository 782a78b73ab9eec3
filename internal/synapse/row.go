package synapse

import "fmt"

// Row is one plastic synaptic row: the pre-event history header followed by
// one plastic word and one control word per synapse.
type Row struct {
	// PreTime is the last pre-synaptic spike time; zero means no spike yet.
	PreTime uint32
	// PreTrace is the rule-encoded pre trace at PreTime.
	PreTrace uint32
	Plastic  []uint32
	Controls []uint32
}

// NewRow builds a row with the given initial plastic words and controls.
func NewRow(plastic, controls []uint32) (*Row, error) {
	r := &Row{Plastic: plastic, Controls: controls}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Row) Validate() error {
	if len(r.Plastic) != len(r.Controls) {
		return fmt.Errorf("row has %d plastic words and %d control words", len(r.Plastic), len(r.Controls))
	}
	return nil
}

// Len returns the number of plastic synapses in the row.
func (r *Row) Len() int {
	return len(r.Controls)
}
