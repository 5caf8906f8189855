package traceship

import (
	"time"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
	"github.com/bft-labs/traceship/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField is a structured log field.
type LogField = log.Field

// LineSource yields log lines; see WithSource.
type LineSource = ports.LineSource

// RecordSink persists records; see WithSink.
type RecordSink = ports.RecordSink

// StatusRepository persists run counters; see WithStatusRepository.
type StatusRepository = ports.StatusRepository

// Record is a captured stack trace as handed to a RecordSink.
type Record = domain.StackTraceRecord

// Status holds the run counters written to status.json.
type Status = domain.Status

// Option configures optional behavior of Traceship.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	source       LineSource
	sink         RecordSink
	statusRepo   StatusRepository
	clock        func() time.Time
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
		clock:  time.Now,
	}
}

// WithLogger sets a logger. Without it nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for traceship events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithSource replaces the source built from Config.SourceKind.
// The source is closed when the pipeline ends.
func WithSource(source LineSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithSink replaces the JSON-lines file sink built from Config.Sink.
// The sink is closed when the pipeline ends.
func WithSink(sink RecordSink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithStatusRepository replaces the status.json repository built from Config.StateDir.
func WithStatusRepository(repo StatusRepository) Option {
	return func(o *options) {
		o.statusRepo = repo
	}
}

// WithClock sets the clock used to stamp records.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
