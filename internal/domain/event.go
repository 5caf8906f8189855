package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// RecordTimeLayout is the capture timestamp layout written to the sink:
// local wall-clock time with second precision.
const RecordTimeLayout = "2006-01-02T15:04:05"

// ErrorEvent is the ordered list of lines making up one SEVERE entry and its stack trace.
type ErrorEvent struct {
	Lines []string
}

// Len returns the number of lines in the event.
func (e ErrorEvent) Len() int {
	return len(e.Lines)
}

// Empty returns true if the event holds no lines.
func (e ErrorEvent) Empty() bool {
	return len(e.Lines) == 0
}

// StackTraceRecord is the persisted form of an ErrorEvent.
// It is created at emission time and never modified afterwards.
type StackTraceRecord struct {
	// Timestamp is the wall-clock time at emission, not a time parsed from the log.
	Timestamp time.Time

	// Stacktrace is the event's lines joined with "\n".
	Stacktrace string

	// LineCount is the number of lines that were joined.
	LineCount int
}

// NewStackTraceRecord stamps an event with its capture time.
func NewStackTraceRecord(capturedAt time.Time, event ErrorEvent) StackTraceRecord {
	return StackTraceRecord{
		Timestamp:  capturedAt,
		Stacktrace: strings.Join(event.Lines, "\n"),
		LineCount:  event.Len(),
	}
}

// recordJSON fixes the wire format: exactly these two keys, in this order.
type recordJSON struct {
	Timestamp  string `json:"timestamp"`
	Stacktrace string `json:"stacktrace"`
}

// MarshalJSON encodes the record as {"timestamp": ..., "stacktrace": ...}.
// Stack traces are kept readable: <, > and & are not escaped.
func (r StackTraceRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(recordJSON{
		Timestamp:  r.Timestamp.Local().Format(RecordTimeLayout),
		Stacktrace: r.Stacktrace,
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes a record written by MarshalJSON.
// The timestamp is interpreted in the local time zone.
func (r *StackTraceRecord) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.ParseInLocation(RecordTimeLayout, raw.Timestamp, time.Local)
	if err != nil {
		return err
	}
	r.Timestamp = ts
	r.Stacktrace = raw.Stacktrace
	r.LineCount = strings.Count(raw.Stacktrace, "\n") + 1
	return nil
}
