package traceship

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/traceship/internal/adapters/docker"
	"github.com/bft-labs/traceship/internal/adapters/fs"
	"github.com/bft-labs/traceship/internal/adapters/stream"
	"github.com/bft-labs/traceship/internal/app"
	"github.com/bft-labs/traceship/internal/domain"
	"github.com/bft-labs/traceship/internal/ports"
)

// Errors returned by the public API. Check them with errors.Is.
var (
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrUnknownSource   = domain.ErrUnknownSource
)

// Traceship tails a log source and writes every SEVERE stack trace it finds
// to a JSON-lines sink. Use New() to create an instance, then Start() to
// begin tailing.
type Traceship struct {
	config    Config
	opts      options
	runID     string
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	logger    ports.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New creates a new Traceship instance with the given configuration.
// The instance is created in StateStopped; call Start() to begin tailing.
// Returns an error if configuration is invalid.
func New(cfg Config, opts ...Option) (*Traceship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	closed := make(chan struct{})
	close(closed)

	return &Traceship{
		config:    cfg,
		opts:      o,
		runID:     uuid.NewString(),
		lifecycle: app.NewLifecycle(o.logger, emitter),
		emitter:   emitter,
		logger:    o.logger,
		done:      closed,
	}, nil
}

// RunID identifies this instance in logs and in the status file.
func (t *Traceship) RunID() string {
	return t.runID
}

// Start begins tailing in the background and returns immediately.
// Returns ErrAlreadyRunning if already running.
// The provided context bounds the lifetime of the tailing operation;
// cancelling it stops the instance without writing an open stack trace.
func (t *Traceship) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lifecycle.CanStart() {
		return domain.ErrAlreadyRunning
	}

	source, err := t.newSource()
	if err != nil {
		return err
	}
	sink := t.newSink()

	if err := t.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		t.closeAll(source, sink)
		return err
	}

	pipeline := app.NewPipeline(app.PipelineConfig{
		Source:           t.config.Source,
		Sink:             t.config.Sink,
		FlushOnStreamEnd: t.config.FlushOnStreamEnd,
		RunID:            t.runID,
	}, source, sink, t.newStatusRepository(), t.logger, t.emitter, t.opts.clock)

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.err = nil
	t.lifecycle.SetCancel(cancel)
	done := make(chan struct{})
	t.done = done

	t.logger.Info("starting",
		ports.String("run_id", t.runID),
		ports.String("source_kind", string(t.config.SourceKind)),
		ports.String("source", t.config.Source),
		ports.String("sink", t.config.Sink),
	)

	t.lifecycle.Go(func() {
		defer close(done)
		defer cancel()
		defer t.closeAll(source, sink)

		if err := t.lifecycle.TransitionTo(app.StateRunning, "pipeline starting"); err != nil {
			t.logger.Error("failed to transition to running", ports.Err(err))
			return
		}

		err := pipeline.Run(runCtx)
		switch {
		case err == nil:
			t.selfStop("source exhausted")
		case runCtx.Err() != nil:
			// cancellation or a deadline on the parent context is a normal end
			t.selfStop("context done: " + runCtx.Err().Error())
		default:
			t.logger.Error("pipeline error", ports.Err(err))
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
			_ = t.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	})

	return nil
}

// selfStop moves a still-running instance to Stopped. It is a no-op when
// Stop() already owns the shutdown.
func (t *Traceship) selfStop(reason string) {
	if err := t.lifecycle.TransitionTo(app.StateStopping, reason); err != nil {
		return
	}
	_ = t.lifecycle.TransitionTo(app.StateStopped, reason)
}

// Stop cancels tailing and waits for the pipeline to exit.
// A stack trace still being collected is discarded.
// Waits up to 30 seconds before giving up.
// Returns nil on graceful shutdown, ErrShutdownTimeout if forced.
func (t *Traceship) Stop() error {
	t.mu.Lock()

	if !t.lifecycle.CanStop() {
		t.mu.Unlock()
		return domain.ErrNotRunning
	}

	if err := t.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		// the pipeline finished on its own in the meantime
		t.mu.Unlock()
		return domain.ErrNotRunning
	}

	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Unlock()

	err := t.lifecycle.WaitWithTimeout(app.ShutdownTimeout)
	if err != nil {
		_ = t.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = t.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (t *Traceship) Status() State {
	return State(t.lifecycle.State())
}

// Done returns a channel closed when the current run's pipeline has exited.
// Before the first Start it is already closed.
func (t *Traceship) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Err returns the error that crashed the last run, or nil.
func (t *Traceship) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Traceship) newSource() (ports.LineSource, error) {
	if t.opts.source != nil {
		return t.opts.source, nil
	}
	follow := !t.config.Once
	switch t.config.SourceKind {
	case SourceDocker:
		return docker.NewContainerSource(docker.Options{
			Binary:    t.config.DockerBinary,
			Container: t.config.Source,
			Follow:    follow,
			Since:     t.config.Since,
			Tail:      t.config.Tail,
		}, t.logger), nil
	case SourceFile:
		return fs.NewFileSource(fs.FileOptions{
			Path:         t.config.Source,
			Follow:       follow,
			FromEnd:      t.config.FromEnd,
			PollInterval: t.config.PollInterval,
		}, t.logger), nil
	case SourceStdin:
		// hide Close so stdin stays open for the host process
		return stream.NewReaderSource(t.config.Source, struct{ io.Reader }{os.Stdin}), nil
	default:
		return nil, fmt.Errorf("%w %q", domain.ErrUnknownSource, t.config.SourceKind)
	}
}

func (t *Traceship) newSink() ports.RecordSink {
	if t.opts.sink != nil {
		return t.opts.sink
	}
	return fs.NewJSONLSink(t.config.Sink, t.config.SyncWrites)
}

func (t *Traceship) newStatusRepository() ports.StatusRepository {
	if t.opts.statusRepo != nil {
		return t.opts.statusRepo
	}
	if t.config.StateDir == "" {
		return nil
	}
	return fs.NewStatusFileRepository(t.config.StateDir)
}

func (t *Traceship) closeAll(source ports.LineSource, sink ports.RecordSink) {
	if err := source.Close(); err != nil {
		t.logger.Warn("close source", ports.Err(err))
	}
	if err := sink.Close(); err != nil {
		t.logger.Error("close sink", ports.Err(err))
	}
}
