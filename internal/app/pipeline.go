package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
)

// PipelineConfig contains configuration for the pipeline loop.
type PipelineConfig struct {
	// Source identifies the tailed container or file in logs and status.
	Source string

	// Sink identifies the output destination in logs.
	Sink string

	// FlushOnStreamEnd emits an unterminated trailing event when the source is
	// exhausted instead of discarding it.
	FlushOnStreamEnd bool

	// RunID is written to the status file.
	RunID string
}

// RecordEventEmitter is called after each emission attempt.
type RecordEventEmitter interface {
	OnRecord(record domain.StackTraceRecord)
	OnWriteError(err error, record domain.StackTraceRecord)
}

// Pipeline pulls lines from a source, groups them into error events and
// writes each completed event to the sink. Everything happens on the
// goroutine that calls Run.
type Pipeline struct {
	config     PipelineConfig
	source     ports.LineSource
	sink       ports.RecordSink
	statusRepo ports.StatusRepository
	logger     ports.Logger
	emitter    RecordEventEmitter
	clock      func() time.Time

	acc    *Accumulator
	status domain.Status
}

// NewPipeline creates a new pipeline with the given dependencies.
// statusRepo and emitter may be nil.
func NewPipeline(
	config PipelineConfig,
	source ports.LineSource,
	sink ports.RecordSink,
	statusRepo ports.StatusRepository,
	logger ports.Logger,
	emitter RecordEventEmitter,
	clock func() time.Time,
) *Pipeline {
	if clock == nil {
		clock = time.Now
	}
	return &Pipeline{
		config:     config,
		source:     source,
		sink:       sink,
		statusRepo: statusRepo,
		logger:     logger,
		emitter:    emitter,
		clock:      clock,
		acc:        NewAccumulator(),
	}
}

// Run executes the pull loop until the source is exhausted (returns nil),
// the context is cancelled (returns ctx.Err()) or the source fails.
// An event still open on cancellation is not written.
func (p *Pipeline) Run(ctx context.Context) error {
	p.loadStatus(ctx)

	p.logger.Info("tailing source",
		ports.String("source", p.source.String()),
		ports.String("sink", p.config.Sink),
	)

	for {
		raw, err := p.source.Next(ctx)
		if err != nil {
			// A killed source may surface as EOF; cancellation wins.
			if ctxErr := ctx.Err(); ctxErr != nil {
				if p.acc.Pending() > 0 {
					p.logger.Warn("cancelled with open stack trace, discarding",
						ports.Int("lines", p.acc.Pending()))
				}
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				p.finish(ctx)
				return nil
			}
			return fmt.Errorf("read %s: %w", p.source, err)
		}

		p.status.LinesRead++
		line := domain.NewLogLine(raw)
		if line.IsErrorStart() {
			p.status.EventsStarted++
			p.logger.Debug("start of stack trace", ports.String("line", line.Text))
		}

		if ev, ok := p.acc.Feed(line); ok {
			p.emit(ctx, ev)
		}
	}
}

// Status returns a snapshot of the run counters.
// It must only be called from the Run goroutine or after Run has returned.
func (p *Pipeline) Status() domain.Status {
	return p.status
}

func (p *Pipeline) finish(ctx context.Context) {
	pending := p.acc.Pending()
	ev, ok := p.acc.Finish(p.config.FlushOnStreamEnd)
	switch {
	case ok:
		p.logger.Info("source exhausted, flushing open stack trace", ports.Int("lines", ev.Len()))
		p.emit(ctx, ev)
	case pending > 0:
		p.status.DroppedAtEnd++
		p.logger.Warn("source exhausted with open stack trace, discarding", ports.Int("lines", pending))
	default:
		p.logger.Info("source exhausted")
	}
	p.saveStatus(ctx)
}

// emit writes one completed event. Sink failures are logged and counted;
// the accumulator has already moved on so the loop continues.
func (p *Pipeline) emit(ctx context.Context, ev domain.ErrorEvent) {
	if ev.Empty() {
		return
	}
	now := p.clock()
	record := domain.NewStackTraceRecord(now, ev)

	if err := p.sink.Write(ctx, record); err != nil {
		p.status.RecordFailed(now)
		p.logger.Error("write stack trace failed",
			ports.Err(err),
			ports.Int("lines", record.LineCount),
			ports.String("sink", p.config.Sink),
		)
		if p.emitter != nil {
			p.emitter.OnWriteError(err, record)
		}
		p.saveStatus(ctx)
		return
	}

	p.status.RecordWritten(now)
	p.logger.Info("stack trace saved",
		ports.Int("lines", record.LineCount),
		ports.Uint64("records", p.status.RecordsWritten),
	)
	if p.emitter != nil {
		p.emitter.OnRecord(record)
	}
	p.saveStatus(ctx)
}

func (p *Pipeline) loadStatus(ctx context.Context) {
	if p.statusRepo != nil {
		st, err := p.statusRepo.Load(ctx)
		if err != nil {
			p.logger.Warn("failed to load status, starting fresh", ports.Err(err))
		} else if st.Source == p.config.Source {
			// counters accumulate across restarts of the same source
			p.status = st
		}
	}
	p.status.RunID = p.config.RunID
	p.status.Source = p.config.Source
}

func (p *Pipeline) saveStatus(ctx context.Context) {
	if p.statusRepo == nil {
		return
	}
	p.status.UpdatedAt = p.clock()
	if err := p.statusRepo.Save(ctx, p.status); err != nil {
		p.logger.Error("failed to save status", ports.Err(err))
	}
}
