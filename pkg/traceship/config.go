package traceship

import (
	"fmt"
	"time"

	"github.com/bft-labs/traceship/internal/adapters/docker"
	"github.com/bft-labs/traceship/internal/adapters/fs"
	"github.com/bft-labs/traceship/internal/domain"
)

// SourceKind selects where log lines come from.
type SourceKind string

const (
	// SourceDocker follows `docker logs` of the container named by Config.Source.
	SourceDocker SourceKind = "docker"
	// SourceFile tails the file at Config.Source.
	SourceFile SourceKind = "file"
	// SourceStdin reads standard input; Config.Source is only a label.
	SourceStdin SourceKind = "stdin"
)

// DefaultSink is the output file used when Config.Sink is empty.
const DefaultSink = "stacktraces.jsonl"

// Config holds the configuration for a traceship instance.
type Config struct {
	// Source identifies what to tail: a container name or ID for SourceDocker,
	// a file path for SourceFile.
	Source string

	// Sink is the path of the JSON-lines output file.
	Sink string

	// SourceKind selects the source adapter. Defaults to SourceDocker.
	SourceKind SourceKind

	// DockerBinary is the docker CLI executable. Defaults to "docker".
	DockerBinary string

	// Since and Tail are passed to `docker logs` when set.
	Since string
	Tail  string

	// FromEnd skips existing file content for SourceFile.
	FromEnd bool

	// PollInterval is the fallback re-check interval when following a file.
	PollInterval time.Duration

	// FlushOnStreamEnd writes a stack trace that is still open when the
	// source ends. By default it is discarded.
	FlushOnStreamEnd bool

	// SyncWrites fsyncs the output file after every record.
	SyncWrites bool

	// StateDir holds status.json with run counters. Empty disables it.
	StateDir string

	// Once reads what the source currently holds and stops instead of following.
	Once bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Source:       "jenkins",
		Sink:         DefaultSink,
		SourceKind:   SourceDocker,
		DockerBinary: docker.DefaultBinary,
		PollInterval: fs.DefaultPollInterval,
	}
}

// SetDefaults fills unset fields with default values.
func (c *Config) SetDefaults() {
	if c.SourceKind == "" {
		c.SourceKind = SourceDocker
	}
	if c.Sink == "" {
		c.Sink = DefaultSink
	}
	if c.DockerBinary == "" {
		c.DockerBinary = docker.DefaultBinary
	}
	if c.PollInterval <= 0 {
		c.PollInterval = fs.DefaultPollInterval
	}
	if c.SourceKind == SourceStdin && c.Source == "" {
		c.Source = "stdin"
	}
}

// Validate checks the configuration. Errors wrap domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	switch c.SourceKind {
	case SourceDocker, SourceFile, SourceStdin:
	default:
		return fmt.Errorf("%w: %w %q", domain.ErrInvalidConfig, domain.ErrUnknownSource, c.SourceKind)
	}
	if c.Source == "" {
		return fmt.Errorf("%w: source is required", domain.ErrInvalidConfig)
	}
	if c.Sink == "" {
		return fmt.Errorf("%w: sink is required", domain.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	return nil
}
