// Package domain contains the core domain entities and value objects for traceship.
//
// This package represents the innermost layer of the Clean Architecture. It has
// no dependencies on infrastructure concerns (processes, file system, logging) and
// contains only pure business logic.
//
// # Entities
//
//   - [LogLine]: A single line of container output, raw and right-trimmed
//   - [ErrorEvent]: The ordered lines of one SEVERE error and its stack trace
//   - [StackTraceRecord]: A captured ErrorEvent stamped with wall-clock time
//   - [Status]: Run counters persisted for operators
//
// # Classification
//
// [IsTimestamp] decides whether a line opens a new log entry. Entries whose
// header also carries the [SevereMarker] token open an ErrorEvent.
package domain
