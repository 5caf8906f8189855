// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [LineSource]: Yields container output one line at a time
//   - [RecordSink]: Persists completed stack trace records
//   - [StatusRepository]: Persists run counters
//   - [Logger]: Structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with docker
// processes, files and readers.
package ports
