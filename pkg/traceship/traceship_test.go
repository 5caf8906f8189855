package traceship_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/traceship/pkg/traceship"
)

// lineSource yields fixed lines, then blocks until ctx is done when hold is
// set, or returns io.EOF.
type lineSource struct {
	mu     sync.Mutex
	lines  []string
	pos    int
	hold   bool
	closed bool
}

func newLines(lines ...string) *lineSource {
	return &lineSource{lines: lines}
}

func (s *lineSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if s.pos < len(s.lines) {
		line := s.lines[s.pos]
		s.pos++
		s.mu.Unlock()
		return line, nil
	}
	s.mu.Unlock()
	if s.hold {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return "", io.EOF
}

func (s *lineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *lineSource) String() string { return "lines" }

func (s *lineSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type memorySink struct {
	mu      sync.Mutex
	records []traceship.Record
	fail    bool
	closed  bool
}

func (m *memorySink) Write(ctx context.Context, r traceship.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("sink unavailable")
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memorySink) snapshot() []traceship.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]traceship.Record(nil), m.records...)
}

type recordingHandler struct {
	traceship.BaseEventHandler

	mu          sync.Mutex
	transitions []string
	writeErrors int
}

func (h *recordingHandler) OnStateChange(e traceship.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, e.Previous.String()+"->"+e.Current.String())
}

func (h *recordingHandler) OnWriteError(e traceship.WriteErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeErrors++
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.transitions...)
}

func waitDone(t *testing.T, ts *traceship.Traceship) {
	t.Helper()
	select {
	case <-ts.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not finish")
	}
}

func testConfig(t *testing.T) traceship.Config {
	t.Helper()
	return traceship.Config{
		Source:     "test",
		Sink:       filepath.Join(t.TempDir(), "out.jsonl"),
		SourceKind: traceship.SourceStdin,
	}
}

var scenarioA = []string{
	"2024-01-01 10:00:00.123+0000 INFO normal\n",
	"2024-01-01 10:00:01.456+0000 SEVERE boom\n",
	"java.lang.NullPointerException\n",
	"    at Foo.bar(Foo.java:10)\n",
	"2024-01-01 10:00:02.789+0000 INFO recovered\n",
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     traceship.Config
		wantErr error
	}{
		{
			name: "defaults are valid",
			cfg:  traceship.DefaultConfig(),
		},
		{
			name:    "unknown source kind",
			cfg:     traceship.Config{Source: "x", SourceKind: "kafka"},
			wantErr: traceship.ErrUnknownSource,
		},
		{
			name:    "missing source",
			cfg:     traceship.Config{SourceKind: traceship.SourceDocker},
			wantErr: traceship.ErrInvalidConfig,
		},
		{
			name: "stdin needs no source",
			cfg:  traceship.Config{SourceKind: traceship.SourceStdin},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := traceship.New(tt.cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, traceship.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want it to wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestNew_RunIDUnique(t *testing.T) {
	a, err := traceship.New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := traceship.New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if a.RunID() == "" || a.RunID() == b.RunID() {
		t.Errorf("run ids %q and %q should be distinct and non-empty", a.RunID(), b.RunID())
	}
}

func TestTraceship_ExhaustedSourceStopsItself(t *testing.T) {
	src := newLines(scenarioA...)
	sink := &memorySink{}
	handler := &recordingHandler{}

	ts, err := traceship.New(testConfig(t),
		traceship.WithSource(src),
		traceship.WithSink(sink),
		traceship.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	waitDone(t, ts)

	if got := ts.Status(); got != traceship.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
	records := sink.snapshot()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	want := "2024-01-01 10:00:01.456+0000 SEVERE boom\njava.lang.NullPointerException\n    at Foo.bar(Foo.java:10)"
	if records[0].Stacktrace != want {
		t.Errorf("Stacktrace = %q, want %q", records[0].Stacktrace, want)
	}
	if !src.isClosed() {
		t.Error("source was not closed")
	}

	wantTransitions := []string{
		"Stopped->Starting", "Starting->Running", "Running->Stopping", "Stopping->Stopped",
	}
	got := handler.snapshot()
	if strings.Join(got, ",") != strings.Join(wantTransitions, ",") {
		t.Errorf("transitions = %v, want %v", got, wantTransitions)
	}

	if err := ts.Stop(); !errors.Is(err, traceship.ErrNotRunning) {
		t.Errorf("Stop() after exhaustion = %v, want ErrNotRunning", err)
	}
}

func TestTraceship_StartTwice(t *testing.T) {
	src := newLines()
	src.hold = true

	ts, err := traceship.New(testConfig(t), traceship.WithSource(src), traceship.WithSink(&memorySink{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); !errors.Is(err, traceship.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if err := ts.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if got := ts.Status(); got != traceship.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
}

func TestTraceship_StopBeforeStart(t *testing.T) {
	ts, err := traceship.New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Stop(); !errors.Is(err, traceship.ErrNotRunning) {
		t.Errorf("Stop() = %v, want ErrNotRunning", err)
	}
}

func TestTraceship_StopDiscardsOpenTrace(t *testing.T) {
	src := newLines(
		"2024-01-01 10:00:01.456+0000 SEVERE boom\n",
		"\tat X.y(X.java:1)\n",
	)
	src.hold = true
	sink := &memorySink{}

	ts, err := traceship.New(testConfig(t), traceship.WithSource(src), traceship.WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := ts.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if n := len(sink.snapshot()); n != 0 {
		t.Errorf("got %d records after stop, want 0", n)
	}
}

func TestTraceship_ParentContextCancel(t *testing.T) {
	src := newLines()
	src.hold = true

	ts, err := traceship.New(testConfig(t), traceship.WithSource(src), traceship.WithSink(&memorySink{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := ts.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	waitDone(t, ts)

	if got := ts.Status(); got != traceship.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
}

func TestTraceship_ParentContextDeadline(t *testing.T) {
	src := newLines()
	src.hold = true

	ts, err := traceship.New(testConfig(t), traceship.WithSource(src), traceship.WithSink(&memorySink{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := ts.Start(ctx); err != nil {
		t.Fatal(err)
	}
	waitDone(t, ts)

	if got := ts.Status(); got != traceship.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
	if err := ts.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestTraceship_WriteErrorsDoNotCrash(t *testing.T) {
	sink := &memorySink{fail: true}
	handler := &recordingHandler{}

	ts, err := traceship.New(testConfig(t),
		traceship.WithSource(newLines(scenarioA...)),
		traceship.WithSink(sink),
		traceship.WithEventHandler(handler),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, ts)

	if got := ts.Status(); got != traceship.StateStopped {
		t.Errorf("Status() = %v, want Stopped", got)
	}
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.writeErrors != 1 {
		t.Errorf("write errors = %d, want 1", handler.writeErrors)
	}
}

type failingSource struct{ lineSource }

func (s *failingSource) Next(ctx context.Context) (string, error) {
	return "", errors.New("pipe broken")
}

func TestTraceship_SourceErrorCrashes(t *testing.T) {
	ts, err := traceship.New(testConfig(t),
		traceship.WithSource(&failingSource{}),
		traceship.WithSink(&memorySink{}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, ts)

	if got := ts.Status(); got != traceship.StateCrashed {
		t.Errorf("Status() = %v, want Crashed", got)
	}
	// a crashed instance can be started again
	if err := ts.Start(context.Background()); err != nil {
		t.Errorf("Start() after crash = %v", err)
	}
	waitDone(t, ts)
}

func TestTraceship_FileToJSONL(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	content := "2024-01-01 10:00:01.456+0000 SEVERE <b>boom</b> & more\r\n" +
		"\tat Foo.bar(Foo.java:10)\r\n" +
		"2024-01-01 10:00:02.000+0000 INFO ok\r\n" +
		"2024-01-01 10:00:03.000+0000 SEVERE trailing\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 4, 5, 6, 7, 890, time.Local)
	cfg := traceship.Config{
		Source:           logPath,
		Sink:             filepath.Join(dir, "nested", "out.jsonl"),
		SourceKind:       traceship.SourceFile,
		Once:             true,
		FlushOnStreamEnd: true,
		StateDir:         filepath.Join(dir, "state"),
	}
	ts, err := traceship.New(cfg, traceship.WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitDone(t, ts)

	f, err := os.Open(cfg.Sink)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	want := []string{
		`{"timestamp":"2024-03-04T05:06:07","stacktrace":"2024-01-01 10:00:01.456+0000 SEVERE <b>boom</b> & more\n\tat Foo.bar(Foo.java:10)"}`,
		`{"timestamp":"2024-03-04T05:06:07","stacktrace":"2024-01-01 10:00:03.000+0000 SEVERE trailing"}`,
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("output:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}

	raw, err := os.ReadFile(filepath.Join(cfg.StateDir, "status.json"))
	if err != nil {
		t.Fatalf("status file: %v", err)
	}
	var st traceship.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatal(err)
	}
	if st.RunID != ts.RunID() || st.RecordsWritten != 2 || st.Source != logPath {
		t.Errorf("status = %+v", st)
	}
}
