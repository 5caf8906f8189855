package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				Source:           "ci",
				SourceKind:       "file",
				Sink:             "/out/st.jsonl",
				PollInterval:     "2s",
				FlushOnStreamEnd: &trueVal,
				Sync:             &trueVal,
				LogLevel:         "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Source:           "ci",
				SourceKind:       "file",
				Sink:             "/out/st.jsonl",
				PollInterval:     2 * time.Second,
				FlushOnStreamEnd: true,
				SyncWrites:       true,
				LogLevel:         "debug",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				Source: "from-file",
				Sink:   "/file/out.jsonl",
			},
			changed: map[string]bool{"source": true},
			initial: Config{
				Source: "from-flag",
				Sink:   "flag.jsonl",
			},
			expected: Config{
				Source: "from-flag", // unchanged because flag was set
				Sink:   "/file/out.jsonl",
			},
		},
		{
			name:       "empty values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{Source: "jenkins", PollInterval: time.Second, Once: true},
			expected:   Config{Source: "jenkins", PollInterval: time.Second, Once: true},
		},
		{
			name:       "explicit false overrides",
			fileConfig: FileConfig{Once: &falseVal},
			changed:    map[string]bool{},
			initial:    Config{Once: true},
			expected:   Config{Once: false},
		},
		{
			name:       "integer tail",
			fileConfig: FileConfig{Tail: int64(100)},
			changed:    map[string]bool{},
			expected:   Config{Tail: "100"},
		},
		{
			name:       "string tail",
			fileConfig: FileConfig{Tail: "all"},
			changed:    map[string]bool{},
			expected:   Config{Tail: "all"},
		},
		{
			name:       "invalid tail type",
			fileConfig: FileConfig{Tail: 1.5},
			changed:    map[string]bool{},
			wantErr:    true,
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{PollInterval: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		check    func(t *testing.T, fc FileConfig)
		wantErr  bool
	}{
		{
			name:     "toml",
			filename: "config.toml",
			content: `
source = "jenkins"
source_kind = "docker"
sink = "/var/lib/traceship/out.jsonl"
poll_interval = "1s"
flush_on_stream_end = true
tail = "200"
`,
			check: func(t *testing.T, fc FileConfig) {
				if fc.Source != "jenkins" || fc.SourceKind != "docker" || fc.Tail != "200" {
					t.Errorf("unexpected config: %+v", fc)
				}
				if fc.PollInterval != "1s" {
					t.Errorf("PollInterval = %q, want 1s", fc.PollInterval)
				}
				if fc.FlushOnStreamEnd == nil || !*fc.FlushOnStreamEnd {
					t.Error("FlushOnStreamEnd should be true")
				}
				if fc.Once != nil {
					t.Error("Once should be unset")
				}
			},
		},
		{
			name:     "yaml",
			filename: "config.yaml",
			content: `
source: /var/log/app.log
source_kind: file
from_end: true
log_level: warn
`,
			check: func(t *testing.T, fc FileConfig) {
				if fc.Source != "/var/log/app.log" || fc.SourceKind != "file" || fc.LogLevel != "warn" {
					t.Errorf("unexpected config: %+v", fc)
				}
				if fc.FromEnd == nil || !*fc.FromEnd {
					t.Error("FromEnd should be true")
				}
			},
		},
		{
			name:     "yml extension",
			filename: "config.YML",
			content:  "sink: out.jsonl\n",
			check: func(t *testing.T, fc FileConfig) {
				if fc.Sink != "out.jsonl" {
					t.Errorf("Sink = %q, want out.jsonl", fc.Sink)
				}
			},
		},
		{
			name:     "unquoted numeric tail",
			filename: "config.toml",
			content:  "tail = 100\n",
			check: func(t *testing.T, fc FileConfig) {
				cfg := Config{}
				if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
					t.Fatalf("ApplyFileConfig() = %v", err)
				}
				if cfg.Tail != "100" {
					t.Errorf("Tail = %q, want 100", cfg.Tail)
				}
			},
		},
		{
			name:     "unquoted numeric tail in yaml",
			filename: "config.yaml",
			content:  "tail: 25\n",
			check: func(t *testing.T, fc FileConfig) {
				cfg := Config{}
				if err := ApplyFileConfig(&cfg, fc, map[string]bool{}); err != nil {
					t.Fatalf("ApplyFileConfig() = %v", err)
				}
				if cfg.Tail != "25" {
					t.Errorf("Tail = %q, want 25", cfg.Tail)
				}
			},
		},
		{
			name:     "invalid toml",
			filename: "config.toml",
			content:  "source = \n",
			wantErr:  true,
		},
		{
			name:     "invalid yaml",
			filename: "config.yaml",
			content:  "source: [unterminated\n",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.filename)
			if err := os.WriteFile(path, []byte(strings.TrimSpace(tt.content)+"\n"), 0o644); err != nil {
				t.Fatal(err)
			}
			fc, err := LoadFileConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Error("LoadFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFileConfig() unexpected error: %v", err)
			}
			tt.check(t, fc)
		})
	}
}

func TestLoadFileConfig_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	if FileExists(path) {
		t.Fatal("FileExists() = true for missing file")
	}
	if _, err := LoadFileConfig(path); !os.IsNotExist(err) {
		t.Errorf("LoadFileConfig() error = %v, want not-exist", err)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	p := DefaultConfigPath()
	if p != "" && !strings.HasSuffix(p, filepath.Join(".traceship", "config.toml")) {
		t.Errorf("DefaultConfigPath() = %q", p)
	}
}
