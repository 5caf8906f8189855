package ports

import (
	"context"
	"io"
)

// LineSource is a blocking, strictly ordered feed of log lines.
type LineSource interface {
	// Next blocks until a line is available and returns it, possibly with its
	// line terminator still attached.
	// Returns io.EOF once the source is exhausted; this is a normal end of stream.
	// Returns ctx.Err() when the context is cancelled while waiting.
	Next(ctx context.Context) (string, error)

	// Close releases the source. Pending Next calls return promptly afterwards.
	Close() error

	// String identifies the source in logs (e.g. "docker:jenkins").
	String() string
}

// ErrEndOfStream indicates that the source has no more lines.
var ErrEndOfStream = io.EOF
