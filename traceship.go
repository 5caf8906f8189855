// Package traceship collects the SEVERE stack traces of a log stream into a
// JSON-lines file.
//
// Example usage:
//
//	cfg := traceship.DefaultConfig()
//	cfg.Source = "jenkins"
//	cfg.Sink = "/var/lib/traceship/jenkins.jsonl"
//	if err := traceship.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// For lifecycle control and event hooks use pkg/traceship directly.
package traceship

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/bft-labs/traceship/internal/cliconfig"
	tslog "github.com/bft-labs/traceship/pkg/log"
	lib "github.com/bft-labs/traceship/pkg/traceship"
)

// Config holds the configuration for a collector.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = lib.Config

// Record is one captured stack trace.
type Record = lib.Record

// DefaultSink is the output file used when Config.Sink is empty.
const DefaultSink = lib.DefaultSink

// Run collects stack traces with the given configuration, logging through
// Logger(). It blocks until the context is cancelled or its deadline passes
// (returns nil), a finite source ends (returns nil) or the source fails.
// Use cfg.Once = true to read what the source currently holds and return.
func Run(ctx context.Context, cfg Config) error {
	ts, err := lib.New(cfg, lib.WithLogger(tslog.NewZerologAdapterWithLogger(Logger())))
	if err != nil {
		return err
	}
	if err := ts.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-ts.Done():
	}
	if err := ts.Stop(); err != nil && !errors.Is(err, lib.ErrNotRunning) {
		return err
	}
	return ts.Err()
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return lib.DefaultConfig()
}

// Logger returns the zerolog logger used by Run.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}
