// Package stream adapts plain io.Readers (stdin, process pipes) to ports.LineSource.
package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

const readBufferSize = 64 * 1024

type result struct {
	line string
	err  error
}

// ReaderSource yields lines from an io.Reader.
//
// A single pump goroutine reads ahead by at most one line and hands it over
// an unbuffered channel, so Next can honour context cancellation even when
// the underlying Read blocks.
type ReaderSource struct {
	name   string
	r      io.Reader
	closer io.Closer

	start     sync.Once
	lines     chan result
	done      chan struct{}
	closeOnce sync.Once
}

// NewReaderSource creates a source named name over r.
// If r implements io.Closer it is closed by Close.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	s := &ReaderSource{
		name:  name,
		r:     r,
		lines: make(chan result),
		done:  make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next line including its terminator. A final line without
// a terminator is returned before io.EOF.
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	s.start.Do(func() { go s.pump() })

	select {
	case res, ok := <-s.lines:
		if !ok || s.closed() {
			return "", io.EOF
		}
		return res.line, res.err
	case <-s.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops delivery and closes the reader when it is closable.
func (s *ReaderSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}

func (s *ReaderSource) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *ReaderSource) String() string {
	return s.name
}

func (s *ReaderSource) pump() {
	defer close(s.lines)

	br := bufio.NewReaderSize(s.r, readBufferSize)
	for {
		line, err := br.ReadString('\n')
		if line != "" && !s.send(result{line: line}) {
			return
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.send(result{err: err})
			}
			return
		}
	}
}

func (s *ReaderSource) send(res result) bool {
	select {
	case s.lines <- res:
		return true
	case <-s.done:
		return false
	}
}
