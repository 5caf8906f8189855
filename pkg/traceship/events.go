package traceship

import (
	"time"

	"github.com/bft-labs/traceship/internal/app"
	"github.com/bft-labs/traceship/internal/domain"
)

// State is the lifecycle state of a Traceship instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// RecordEvent is emitted after a stack trace record has been written.
type RecordEvent struct {
	Timestamp  time.Time
	Lines      int
	Stacktrace string
}

// WriteErrorEvent is emitted when the sink rejects a record. The record is lost.
type WriteErrorEvent struct {
	Error error
	Lines int
}

// EventHandler receives traceship events.
// Methods are called synchronously from the pipeline goroutine and should return quickly.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnRecord(event RecordEvent)
	OnWriteError(event WriteErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops; embed it to handle a subset.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnRecord(RecordEvent)           {}
func (BaseEventHandler) OnWriteError(WriteErrorEvent)   {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnRecord(record domain.StackTraceRecord) {
	if e.handler == nil {
		return
	}
	e.handler.OnRecord(RecordEvent{
		Timestamp:  record.Timestamp,
		Lines:      record.LineCount,
		Stacktrace: record.Stacktrace,
	})
}

func (e *eventEmitterWrapper) OnWriteError(err error, record domain.StackTraceRecord) {
	if e.handler == nil {
		return
	}
	e.handler.OnWriteError(WriteErrorEvent{Error: err, Lines: record.LineCount})
}
