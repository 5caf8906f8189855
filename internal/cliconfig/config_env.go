package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (TRACESHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", os.Getenv("TRACESHIP_SOURCE"), &cfg.Source)
	s.setString("source-kind", os.Getenv("TRACESHIP_SOURCE_KIND"), &cfg.SourceKind)
	s.setString("sink", os.Getenv("TRACESHIP_SINK"), &cfg.Sink)
	s.setString("docker-binary", os.Getenv("TRACESHIP_DOCKER_BINARY"), &cfg.DockerBinary)
	s.setString("since", os.Getenv("TRACESHIP_SINCE"), &cfg.Since)
	s.setString("tail", os.Getenv("TRACESHIP_TAIL"), &cfg.Tail)
	s.setString("state-dir", os.Getenv("TRACESHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("log-level", os.Getenv("TRACESHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("poll", os.Getenv("TRACESHIP_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	s.setBoolFromString("from-end", os.Getenv("TRACESHIP_FROM_END"), &cfg.FromEnd)
	s.setBoolFromString("flush-on-stream-end", os.Getenv("TRACESHIP_FLUSH_ON_STREAM_END"), &cfg.FlushOnStreamEnd)
	s.setBoolFromString("sync", os.Getenv("TRACESHIP_SYNC"), &cfg.SyncWrites)
	s.setBoolFromString("once", os.Getenv("TRACESHIP_ONCE"), &cfg.Once)

	return nil
}
