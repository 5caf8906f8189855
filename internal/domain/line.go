package domain

import (
	"regexp"
	"strings"
	"unicode"
)

// SevereMarker is the token that turns a timestamped entry into the start of an ErrorEvent.
const SevereMarker = "SEVERE"

// timestampPrefix matches "YYYY-MM-DD HH:MM:SS.ffffff+ZZZZ" at the start of a line.
var timestampPrefix = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2} [0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]+\+[0-9]{4}`)

// IsTimestamp reports whether the trimmed line begins with the log entry timestamp.
// Anything after the prefix is unconstrained.
func IsTimestamp(line string) bool {
	return timestampPrefix.MatchString(strings.TrimSpace(line))
}

// LogLine is a single line read from the container output.
type LogLine struct {
	// Raw is the line as delivered by the source, possibly with a line terminator.
	Raw string

	// Text is Raw without trailing whitespace. Leading indentation is kept,
	// since continuation lines of a stack trace depend on it.
	Text string
}

// NewLogLine builds a LogLine from raw source output.
func NewLogLine(raw string) LogLine {
	return LogLine{
		Raw:  raw,
		Text: strings.TrimRightFunc(raw, unicode.IsSpace),
	}
}

// IsTimestamp reports whether the line opens a new log entry.
func (l LogLine) IsTimestamp() bool {
	return IsTimestamp(l.Text)
}

// IsErrorStart reports whether the line opens a new ErrorEvent.
func (l LogLine) IsErrorStart() bool {
	return l.IsTimestamp() && strings.Contains(l.Text, SevereMarker)
}
