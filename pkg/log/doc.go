// Package log provides the logging abstraction used across traceship.
//
// Components depend on the small [Logger] interface rather than on a
// concrete logging library. [ZerologAdapter] backs it with zerolog for the
// CLI, and [NoopLogger] discards everything, which is the library default.
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Info("record written", log.Int("lines", 12))
//
// Any other logging library can be plugged in by implementing the four
// level methods of [Logger].
package log
