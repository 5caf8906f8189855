package domain

import "errors"

// Domain errors represent error conditions in the traceship domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("traceship: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("traceship: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("traceship: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("traceship: invalid configuration")

	// ErrUnknownSource is returned when the configured source kind is not supported.
	ErrUnknownSource = errors.New("traceship: unknown source kind")
)
