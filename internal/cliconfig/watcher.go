package cliconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounceDelay is how long the watcher waits after the last change
// before reloading.
const DefaultDebounceDelay = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk.
// Only settings that can change at runtime are handed to onChange; the rest
// need a restart.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger
	onChange func(FileConfig)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the config file at path.
func NewWatcher(path string, debounce time.Duration, logger zerolog.Logger, onChange func(FileConfig)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceDelay
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   logger,
		onChange: onChange,
	}
}

// Run watches the file's directory until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	// watch the directory so editors that replace the file are seen
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	if _, err := os.Stat(w.path); err != nil {
		return
	}
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Str("path", w.path).Msg("config reload failed, keeping current settings")
		return
	}
	w.logger.Info().Str("path", w.path).Msg("config file changed")
	w.onChange(fc)
}

// ReloadLogLevel returns a change handler that applies the file's log_level,
// unless a --log-level flag or TRACESHIP_LOG_LEVEL pinned it at startup.
func ReloadLogLevel(changed map[string]bool, logger zerolog.Logger) func(FileConfig) {
	pinned := changed["log-level"] || os.Getenv("TRACESHIP_LOG_LEVEL") != ""
	return func(fc FileConfig) {
		if pinned || fc.LogLevel == "" {
			return
		}
		if err := SetLogLevel(fc.LogLevel); err != nil {
			logger.Warn().Err(err).Msg("ignoring log level from config file")
			return
		}
		logger.Info().Str("level", fc.LogLevel).Msg("log level updated")
	}
}
