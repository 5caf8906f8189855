package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/traceship/pkg/traceship"
)

// DefaultLogLevel is the zerolog level used when none is configured.
const DefaultLogLevel = "info"

// Config holds CLI configuration for traceship.
type Config struct {
	Source       string
	SourceKind   string
	Sink         string
	DockerBinary string
	Since        string
	Tail         string
	FromEnd      bool

	PollInterval time.Duration
	StateDir     string

	FlushOnStreamEnd bool
	SyncWrites       bool
	Once             bool

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	lib := traceship.DefaultConfig()
	return Config{
		Source:       lib.Source,
		SourceKind:   string(lib.SourceKind),
		Sink:         lib.Sink,
		DockerBinary: lib.DockerBinary,
		PollInterval: lib.PollInterval,
		LogLevel:     DefaultLogLevel,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", traceship.ErrInvalidConfig)
	}
	if c.Tail != "" && c.Tail != "all" {
		n, err := strconv.Atoi(c.Tail)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: tail must be a non-negative number or \"all\", got %q", traceship.ErrInvalidConfig, c.Tail)
		}
	}
	lib := c.ToLibrary()
	return lib.Validate()
}

// ToLibrary converts the CLI configuration to a library Config with defaults applied.
func (c Config) ToLibrary() traceship.Config {
	lib := traceship.Config{
		Source:           c.Source,
		Sink:             c.Sink,
		SourceKind:       traceship.SourceKind(c.SourceKind),
		DockerBinary:     c.DockerBinary,
		Since:            c.Since,
		Tail:             c.Tail,
		FromEnd:          c.FromEnd,
		PollInterval:     c.PollInterval,
		FlushOnStreamEnd: c.FlushOnStreamEnd,
		SyncWrites:       c.SyncWrites,
		StateDir:         c.StateDir,
		Once:             c.Once,
	}
	lib.SetDefaults()
	return lib
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
