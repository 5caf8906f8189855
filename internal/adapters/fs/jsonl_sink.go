// Package fs implements file-backed sources, sinks and repositories.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bft-labs/traceship/internal/domain"
)

// JSONLSink appends one JSON object per record to a file.
// The file is created on the first write, so runs without errors leave no file behind.
type JSONLSink struct {
	path       string
	syncWrites bool

	mu sync.Mutex
	f  *os.File
}

// NewJSONLSink creates a sink appending to path.
// With syncWrites each record is fsynced before Write returns.
func NewJSONLSink(path string, syncWrites bool) *JSONLSink {
	return &JSONLSink{path: path, syncWrites: syncWrites}
}

// Write appends the record and a newline in a single write call.
func (s *JSONLSink) Write(ctx context.Context, record domain.StackTraceRecord) error {
	// not json.Marshal: it would re-escape <, > and & in the output
	b, err := record.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		if err := s.open(); err != nil {
			return err
		}
	}
	if _, err := s.f.Write(b); err != nil {
		return fmt.Errorf("append %s: %w", s.path, err)
	}
	if s.syncWrites {
		if err := s.f.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", s.path, err)
		}
	}
	return nil
}

func (s *JSONLSink) open() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	s.f = f
	return nil
}

// Close closes the output file. Later writes reopen it.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Path returns the output file path.
func (s *JSONLSink) Path() string {
	return s.path
}
