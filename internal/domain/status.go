package domain

import "time"

// Status is the run summary persisted for operators.
// It is saved after every emitted record and when the stream ends.
type Status struct {
	// RunID identifies the process run that last wrote the status.
	RunID string `json:"run_id"`

	// Source is the identifier of the log source being tailed.
	Source string `json:"source"`

	// LinesRead counts lines pulled from the source.
	LinesRead uint64 `json:"lines_read"`

	// EventsStarted counts SEVERE headers seen.
	EventsStarted uint64 `json:"events_started"`

	// RecordsWritten counts records the sink accepted.
	RecordsWritten uint64 `json:"records_written"`

	// WriteErrors counts records lost to sink failures.
	WriteErrors uint64 `json:"write_errors"`

	// DroppedAtEnd counts trailing events discarded when a stream ended.
	DroppedAtEnd uint64 `json:"dropped_at_end"`

	// LastRecordAt is the capture time of the last written record.
	LastRecordAt time.Time `json:"last_record_at"`

	// UpdatedAt is when the status was last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsEmpty returns true if the status has never been saved.
func (s Status) IsEmpty() bool {
	return s.RunID == "" && s.LinesRead == 0
}

// RecordWritten updates counters after a successful sink write.
func (s *Status) RecordWritten(at time.Time) {
	s.RecordsWritten++
	s.LastRecordAt = at
	s.UpdatedAt = at
}

// RecordFailed updates counters after a failed sink write.
func (s *Status) RecordFailed(at time.Time) {
	s.WriteErrors++
	s.UpdatedAt = at
}
