package app

import "github.com/bft-labs/traceship/internal/domain"

// AccumulatorState is the state of the stack trace accumulator.
type AccumulatorState int

const (
	// Idle means no error event is open and the buffer is empty.
	Idle AccumulatorState = iota
	// Buffering means an error event is open and the buffer holds at least its header.
	Buffering
)

// String returns a human-readable representation of the state.
func (s AccumulatorState) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Buffering:
		return "BUFFERING"
	default:
		return "UNKNOWN"
	}
}

// Accumulator groups log lines into error events.
//
// An event opens at a timestamped line containing SEVERE and closes at the
// next timestamped line. Lines outside an event are dropped. The accumulator
// is not safe for concurrent use; it is owned by a single pipeline goroutine.
type Accumulator struct {
	state AccumulatorState
	buf   []string
}

// NewAccumulator creates an accumulator in the Idle state.
func NewAccumulator() *Accumulator {
	return &Accumulator{state: Idle}
}

// State returns the current state.
func (a *Accumulator) State() AccumulatorState {
	return a.state
}

// Pending returns the number of lines buffered for the open event.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// Feed advances the state machine by one line.
// It returns the event completed by this line, if any. When a SEVERE header
// closes a previous event, the returned event is the previous one and the
// header already sits in the fresh buffer.
func (a *Accumulator) Feed(line domain.LogLine) (domain.ErrorEvent, bool) {
	if !line.IsTimestamp() {
		if a.state == Buffering {
			a.buf = append(a.buf, line.Text)
		}
		return domain.ErrorEvent{}, false
	}

	if line.IsErrorStart() {
		ev, ok := a.take()
		a.state = Buffering
		a.buf = append(a.buf, line.Text)
		return ev, ok
	}

	if a.state == Buffering {
		ev, ok := a.take()
		a.state = Idle
		return ev, ok
	}
	return domain.ErrorEvent{}, false
}

// Finish ends the stream. An open event is emitted only when flush is true;
// otherwise it is discarded. The accumulator is Idle afterwards.
func (a *Accumulator) Finish(flush bool) (domain.ErrorEvent, bool) {
	ev, ok := a.take()
	a.state = Idle
	if !flush {
		return domain.ErrorEvent{}, false
	}
	return ev, ok
}

// take hands out the buffered lines and clears the buffer first, so a failed
// write downstream cannot leave stale lines behind.
func (a *Accumulator) take() (domain.ErrorEvent, bool) {
	if len(a.buf) == 0 {
		return domain.ErrorEvent{}, false
	}
	lines := a.buf
	a.buf = nil
	return domain.ErrorEvent{Lines: lines}, true
}
