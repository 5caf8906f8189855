package fs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/traceship/internal/ports"
)

// DefaultPollInterval is the fallback re-check interval while following a file.
const DefaultPollInterval = 500 * time.Millisecond

// FileOptions configures a FileSource.
type FileOptions struct {
	// Path is the log file to read.
	Path string

	// Follow keeps reading as the file grows, across truncation and rotation.
	// Without Follow the source ends at the current end of file.
	Follow bool

	// FromEnd skips existing content and starts with lines written later.
	// Only meaningful with Follow.
	FromEnd bool

	// PollInterval bounds how long a missed filesystem event can delay reading.
	PollInterval time.Duration
}

// FileSource implements ports.LineSource by tailing a file.
// Change notifications come from fsnotify on the file's directory, so
// rotation by rename-and-recreate is picked up; a poll tick backs it up on
// filesystems without inotify support (bind mounts, NFS).
type FileSource struct {
	opts   FileOptions
	logger ports.Logger

	f       *os.File
	info    os.FileInfo
	br      *bufio.Reader
	offset  int64
	partial strings.Builder

	watcher *fsnotify.Watcher
	ticker  *time.Ticker

	// attempted is set after the first open attempt; FromEnd applies only to
	// a file that already existed then.
	attempted bool

	// draining is set once the old handle of a rotated file was seen at EOF.
	draining bool
}

// NewFileSource creates a source for the given options.
func NewFileSource(opts FileOptions, logger ports.Logger) *FileSource {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	opts.Path = filepath.Clean(opts.Path)
	return &FileSource{opts: opts, logger: logger}
}

// Next returns the next complete line. In follow mode it waits for the file
// to grow; otherwise it returns io.EOF at end of file, delivering a final
// unterminated line first.
func (s *FileSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if s.f == nil {
			if err := s.open(); err != nil {
				if !s.opts.Follow || !errors.Is(err, os.ErrNotExist) {
					return "", err
				}
				if err := s.wait(ctx); err != nil {
					return "", err
				}
				continue
			}
		}

		chunk, err := s.br.ReadString('\n')
		s.offset += int64(len(chunk))
		if err == nil {
			line := s.partial.String() + chunk
			s.partial.Reset()
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read %s: %w", s.opts.Path, err)
		}
		s.partial.WriteString(chunk)

		if !s.opts.Follow {
			if s.partial.Len() > 0 {
				line := s.partial.String()
				s.partial.Reset()
				return line, nil
			}
			return "", io.EOF
		}

		if err := s.wait(ctx); err != nil {
			return "", err
		}
		if line, ok := s.checkReplaced(); ok {
			return line, nil
		}
	}
}

func (s *FileSource) open() error {
	skipExisting := s.opts.Follow && s.opts.FromEnd && !s.attempted
	s.attempted = true

	f, err := os.Open(s.opts.Path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	s.offset = 0
	if skipExisting {
		off, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return err
		}
		s.offset = off
	}

	s.f = f
	s.info = info
	s.br = bufio.NewReaderSize(f, 64*1024)
	s.partial.Reset()
	s.draining = false
	s.logger.Debug("opened log file", ports.String("path", s.opts.Path))
	return nil
}

// checkReplaced reopens a rotated file and rewinds a truncated one.
// A rotated file is drained first: it is given one more check to receive
// late writes, and an unterminated last line is returned as a line before
// the switch so it is not lost.
func (s *FileSource) checkReplaced() (string, bool) {
	if s.f == nil {
		return "", false
	}
	info, err := os.Stat(s.opts.Path)
	if err != nil {
		// removed; keep draining the old handle until a new file shows up
		return "", false
	}

	if !os.SameFile(s.info, info) {
		if _, err := s.br.Peek(1); err == nil {
			// the old file still has unread lines
			s.draining = false
			return "", false
		}
		if !s.draining {
			s.draining = true
			return "", false
		}

		tail := s.partial.String()
		s.logger.Info("log file rotated, reopening", ports.String("path", s.opts.Path))
		s.f.Close()
		s.f = nil
		if err := s.open(); err != nil {
			s.logger.Warn("reopen log file failed", ports.Err(err))
		}
		if tail != "" {
			return tail, true
		}
		return "", false
	}

	if info.Size() < s.offset {
		s.logger.Info("log file truncated, rewinding", ports.String("path", s.opts.Path))
		if _, err := s.f.Seek(0, io.SeekStart); err != nil {
			s.logger.Warn("rewind log file failed", ports.Err(err))
			return "", false
		}
		s.offset = 0
		s.br.Reset(s.f)
		s.partial.Reset()
	}
	return "", false
}

// wait blocks until the file's directory reports a change to the file,
// the poll interval elapses, or ctx is done.
func (s *FileSource) wait(ctx context.Context) error {
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.opts.PollInterval)
		s.watch()
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if s.watcher != nil {
		events, errs = s.watcher.Events, s.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ticker.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != s.opts.Path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("file watcher error", ports.Err(err))
		}
	}
}

func (s *FileSource) watch() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("file watcher unavailable, polling", ports.Err(err))
		return
	}
	if err := w.Add(filepath.Dir(s.opts.Path)); err != nil {
		s.logger.Warn("watch log directory failed, polling", ports.Err(err))
		w.Close()
		return
	}
	s.watcher = w
}

// Close releases the file and the watcher.
func (s *FileSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		return err
	}
	return nil
}

func (s *FileSource) String() string {
	return "file:" + s.opts.Path
}
