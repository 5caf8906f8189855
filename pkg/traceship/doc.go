// Package traceship provides an embeddable stack trace collector for
// container logs.
//
// Traceship follows a log stream (a container's `docker logs`, a file or
// standard input), recognises error stack traces that start at a timestamped
// SEVERE line and end at the next timestamped line, and appends each one as
// a JSON object to a JSON-lines file:
//
//	{"timestamp":"2024-01-02T03:04:05","stacktrace":"2024-01-02 ... SEVERE boom\n\tat A.b(A.java:1)"}
//
// # Basic Usage
//
//	cfg := traceship.DefaultConfig()
//	cfg.Source = "jenkins"
//	cfg.Sink = "/var/log/jenkins-stacktraces.jsonl"
//
//	ts, err := traceship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := ts.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := ts.Stop(); err != nil && !errors.Is(err, traceship.ErrNotRunning) {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Sources
//
// [Config.SourceKind] selects the input: [SourceDocker] runs the docker CLI,
// [SourceFile] tails a file across truncation and rotation, [SourceStdin]
// reads standard input. [WithSource] injects any other [LineSource].
//
// When a finite source ends, a stack trace that is still open is discarded
// unless [Config.FlushOnStreamEnd] is set, and the instance moves itself to
// [StateStopped]. Stopping or cancelling never writes an open stack trace.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler] for defaults) and
// pass it via [WithEventHandler]. Events are called synchronously from the
// pipeline goroutine.
//
// # Lifecycle States
//
// An instance is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Traceship.Status] to query it.
package traceship
