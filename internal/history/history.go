// Package history keeps the bounded per-neuron log of post-synaptic events
// and answers the window queries used to replay them into a timing rule.
//
// Logical index 0 of every history is a sentinel event at time 0 carrying the
// rule's initial trace. Real events occupy logical indices 1..CountMinusOne()
// in increasing time order. Storage is a circular buffer, so evicting the
// oldest real event when full moves no data.
package history

import (
	"errors"
	"fmt"
)

// Capacity is the number of logical entries including the sentinel.
const Capacity = 16

const ringSize = Capacity - 1

// MaxNeurons bounds the number of histories a Store will reserve.
const MaxNeurons = 1 << 20

var ErrAllocation = errors.New("post event history allocation failed")

// History is the event log of one post-synaptic neuron.
type History[T any] struct {
	sentinel T
	times    [ringSize]uint32
	traces   [ringSize]T
	head     int
	count    int
	// markers has bit i set when logical entry i is a neuromodulator event.
	markers uint32
}

// New returns a history holding only the sentinel.
func New[T any](initial T) History[T] {
	return History[T]{sentinel: initial}
}

// CountMinusOne is the number of real events retained.
func (h *History[T]) CountMinusOne() int {
	return h.count
}

func (h *History[T]) slot(logical int) int {
	return (h.head + logical - 1) % ringSize
}

// Time returns the time of logical entry i.
func (h *History[T]) Time(i int) uint32 {
	if i == 0 {
		return 0
	}
	return h.times[h.slot(i)]
}

// Trace returns the trace of logical entry i.
func (h *History[T]) Trace(i int) T {
	if i == 0 {
		return h.sentinel
	}
	return h.traces[h.slot(i)]
}

// IsDopamine reports whether logical entry i is a neuromodulator event.
func (h *History[T]) IsDopamine(i int) bool {
	return h.markers&(1<<uint(i)) != 0
}

// LastTime is the time of the newest entry (0 when empty).
func (h *History[T]) LastTime() uint32 {
	return h.Time(h.count)
}

// LastTrace is the trace of the newest entry (the sentinel trace when empty).
func (h *History[T]) LastTrace() T {
	return h.Trace(h.count)
}

// Add appends an event. time must exceed the previous event's time; this is
// not checked. It reports whether the oldest real event was evicted.
func (h *History[T]) Add(time uint32, trace T) bool {
	return h.add(time, trace, false)
}

// AddDopamine appends a neuromodulator event.
func (h *History[T]) AddDopamine(time uint32, trace T) bool {
	return h.add(time, trace, true)
}

func (h *History[T]) add(time uint32, trace T, dopamine bool) bool {
	evicted := false
	if h.count < ringSize {
		h.count++
	} else {
		h.head = (h.head + 1) % ringSize
		// logical i becomes i-1; bit 1 falls into the sentinel position
		h.markers = (h.markers >> 1) &^ 1
		evicted = true
	}
	s := h.slot(h.count)
	h.times[s] = time
	h.traces[s] = trace
	if dopamine {
		h.markers |= 1 << uint(h.count)
	} else {
		h.markers &^= 1 << uint(h.count)
	}
	return evicted
}

// Window returns a cursor over the events e with begin < time(e) <= end, in
// increasing time order.
func (h *History[T]) Window(begin, end uint32) Window[T] {
	endIdx := h.count
	for endIdx > 0 && h.Time(endIdx) > end {
		endIdx--
	}
	prev := endIdx
	for prev > 0 && h.Time(prev) > begin {
		prev--
	}
	return Window[T]{
		h:         h,
		prevTime:  h.Time(prev),
		prevTrace: h.Trace(prev),
		prevValid: prev != 0,
		next:      prev + 1,
		numEvents: endIdx - prev,
		markers:   h.markers >> uint(prev+1),
	}
}

// Store holds one history per post-synaptic neuron.
type Store[T any] struct {
	histories []History[T]
}

// NewStore reserves n histories, each starting with the sentinel only.
func NewStore[T any](n int, initial T) (*Store[T], error) {
	if n < 0 || n > MaxNeurons {
		return nil, fmt.Errorf("%w: %d neurons (limit %d)", ErrAllocation, n, MaxNeurons)
	}
	histories := make([]History[T], n)
	for i := range histories {
		histories[i] = New(initial)
	}
	return &Store[T]{histories: histories}, nil
}

func (s *Store[T]) Len() int {
	return len(s.histories)
}

// Get returns the history of neuron i; it panics when i is out of range.
func (s *Store[T]) Get(i uint32) *History[T] {
	return &s.histories[i]
}
