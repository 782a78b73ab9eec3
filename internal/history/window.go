package history

// Window is a read cursor produced by History.Window. Next returns the
// advanced cursor; the receiver is unchanged.
type Window[T any] struct {
	h         *History[T]
	prevTime  uint32
	prevTrace T
	prevValid bool
	next      int
	numEvents int
	markers   uint32
}

// NumEvents is the number of events left to visit.
func (w Window[T]) NumEvents() int {
	return w.numEvents
}

// PrevTime is the time of the event preceding the next one.
func (w Window[T]) PrevTime() uint32 {
	return w.prevTime
}

func (w Window[T]) PrevTrace() T {
	return w.prevTrace
}

// PrevTimeValid is false when the preceding event is the sentinel, meaning
// no real event happened before the next one.
func (w Window[T]) PrevTimeValid() bool {
	return w.prevValid
}

// NextTime is the time of the next event. It must only be called while
// NumEvents() > 0.
func (w Window[T]) NextTime() uint32 {
	return w.h.Time(w.next)
}

func (w Window[T]) NextTrace() T {
	return w.h.Trace(w.next)
}

// NextIsDopamine reports whether the next event is a neuromodulator event.
func (w Window[T]) NextIsDopamine() bool {
	return w.markers&1 != 0
}

// Next moves past the next event.
func (w Window[T]) Next() Window[T] {
	w.prevTime = w.h.Time(w.next)
	w.prevTrace = w.h.Trace(w.next)
	w.prevValid = true
	w.next++
	w.numEvents--
	w.markers >>= 1
	return w
}
