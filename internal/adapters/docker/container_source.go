// Package docker follows a container's combined output through the docker CLI.
package docker

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/bft-labs/traceship/internal/adapters/stream"
	"github.com/bft-labs/traceship/internal/ports"
)

// DefaultBinary is the docker CLI looked up on PATH.
const DefaultBinary = "docker"

// Options selects what `docker logs` streams.
type Options struct {
	// Binary is the docker CLI executable. Defaults to DefaultBinary.
	Binary string

	// Container is the container name or ID.
	Container string

	// Follow keeps the stream open for new output (`--follow`).
	Follow bool

	// Since limits output to entries after a timestamp or relative duration (`--since`).
	Since string

	// Tail limits the number of history lines replayed (`--tail`). Empty means all.
	Tail string
}

// ContainerSource implements ports.LineSource over `docker logs`.
// stdout and stderr share one pipe so lines keep their relative order.
// The process is started by the first Next call and bound to its context.
type ContainerSource struct {
	opts   Options
	logger ports.Logger

	mu     sync.Mutex
	src    *stream.ReaderSource
	cancel context.CancelFunc
}

// NewContainerSource creates a source for the given options.
func NewContainerSource(opts Options, logger ports.Logger) *ContainerSource {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	return &ContainerSource{opts: opts, logger: logger}
}

// Args returns the docker CLI arguments, without the binary.
func (c *ContainerSource) Args() []string {
	args := []string{"logs"}
	if c.opts.Follow {
		args = append(args, "--follow")
	}
	if c.opts.Since != "" {
		args = append(args, "--since", c.opts.Since)
	}
	if c.opts.Tail != "" {
		args = append(args, "--tail", c.opts.Tail)
	}
	return append(args, c.opts.Container)
}

// Next returns the next line of container output.
// A clean exit of `docker logs` ends the stream with io.EOF; a failed exit
// is returned as an error.
func (c *ContainerSource) Next(ctx context.Context) (string, error) {
	src, err := c.ensureStarted(ctx)
	if err != nil {
		return "", err
	}
	return src.Next(ctx)
}

func (c *ContainerSource) ensureStarted(ctx context.Context) (*stream.ReaderSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src != nil {
		return c.src, nil
	}

	procCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(procCtx, c.opts.Binary, c.Args()...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, fmt.Errorf("start %s logs %s: %w", c.opts.Binary, c.opts.Container, err)
	}
	c.logger.Info("attached to container logs",
		ports.String("container", c.opts.Container),
		ports.Bool("follow", c.opts.Follow),
		ports.Int("pid", cmd.Process.Pid),
	)

	go func() {
		werr := cmd.Wait()
		if werr != nil {
			werr = fmt.Errorf("%s logs %s: %w", c.opts.Binary, c.opts.Container, werr)
		}
		// nil closes the pipe with io.EOF
		pw.CloseWithError(werr)
	}()

	c.src = stream.NewReaderSource(c.String(), pr)
	c.cancel = cancel
	return c.src, nil
}

// Close stops the docker process.
func (c *ContainerSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if c.src != nil {
		return c.src.Close()
	}
	return nil
}

func (c *ContainerSource) String() string {
	return "docker:" + c.opts.Container
}
