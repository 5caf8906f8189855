package ports

import (
	"context"

	"github.com/bft-labs/traceship/internal/domain"
)

// RecordSink persists stack trace records.
type RecordSink interface {
	// Write persists one record. A failed write loses only that record.
	Write(ctx context.Context, record domain.StackTraceRecord) error

	// Close flushes and releases the sink.
	Close() error
}
