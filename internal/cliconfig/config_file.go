package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations to keep files readable.
type FileConfig struct {
	Source           string `toml:"source" yaml:"source"`
	SourceKind       string `toml:"source_kind" yaml:"source_kind"`
	Sink             string `toml:"sink" yaml:"sink"`
	DockerBinary     string `toml:"docker_binary" yaml:"docker_binary"`
	Since            string `toml:"since" yaml:"since"`
	Tail             any    `toml:"tail" yaml:"tail"` // number or "all"
	FromEnd          *bool  `toml:"from_end" yaml:"from_end"`
	PollInterval     string `toml:"poll_interval" yaml:"poll_interval"`
	StateDir         string `toml:"state_dir" yaml:"state_dir"`
	FlushOnStreamEnd *bool  `toml:"flush_on_stream_end" yaml:"flush_on_stream_end"`
	Sync             *bool  `toml:"sync" yaml:"sync"`
	Once             *bool  `toml:"once" yaml:"once"`
	LogLevel         string `toml:"log_level" yaml:"log_level"`
}

// LoadFileConfig reads and parses a config file. Paths ending in .yaml or
// .yml are parsed as YAML, anything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse toml %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.traceship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".traceship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("source", fc.Source, &cfg.Source)
	s.setString("source-kind", fc.SourceKind, &cfg.SourceKind)
	s.setString("sink", fc.Sink, &cfg.Sink)
	s.setString("docker-binary", fc.DockerBinary, &cfg.DockerBinary)
	s.setString("since", fc.Since, &cfg.Since)
	tail, err := tailString(fc.Tail)
	if err != nil {
		return err
	}
	s.setString("tail", tail, &cfg.Tail)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setBool("from-end", fc.FromEnd, &cfg.FromEnd)
	s.setBool("flush-on-stream-end", fc.FlushOnStreamEnd, &cfg.FlushOnStreamEnd)
	s.setBool("sync", fc.Sync, &cfg.SyncWrites)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// tailString accepts tail as an integer (tail = 100) or a string (tail = "all").
func tailString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	default:
		return "", fmt.Errorf("parse tail: want a number or \"all\", got %v", v)
	}
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
