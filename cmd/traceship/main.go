package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/traceship/internal/cliconfig"
	tslog "github.com/bft-labs/traceship/pkg/log"
	"github.com/bft-labs/traceship/pkg/traceship"
)

const helpDescription = `
Collect the SEVERE stack traces of a container's log stream into a JSON-lines file.

Highlights:
  - Follows docker logs, a log file (across rotation) or stdin.
  - A stack trace starts at a timestamped SEVERE line and ends at the next timestamped line.
  - One {"timestamp","stacktrace"} object per line, appended as each trace completes.
  - Configure via file (TOML or YAML), TRACESHIP_* env, or flags.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  traceship --source jenkins --sink /var/lib/traceship/jenkins.jsonl
  traceship --source-kind file --source /var/log/app.log --once --flush-on-stream-end
  docker logs jenkins 2>&1 | traceship --source-kind stdin
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// waitForExit blocks until a signal arrives or the pipeline ends on its own,
// then stops ts. A crash is returned with its cause.
func waitForExit(ts *traceship.Traceship, sigCh <-chan os.Signal, log zerolog.Logger) error {
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
	case <-ts.Done():
		if ts.Status() == traceship.StateCrashed {
			return fmt.Errorf("traceship crashed: %w", ts.Err())
		}
	}

	if err := ts.Stop(); err != nil && !errors.Is(err, traceship.ErrNotRunning) {
		return fmt.Errorf("stop traceship: %w", err)
	}
	return nil
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:          "traceship",
		Short:        "Collect SEVERE stack traces from container logs into a JSON-lines file",
		Long:         longHelp,
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else if cfgPath != "" {
				return fmt.Errorf("config file %s not found", cfgPath)
			}

			// env overrides file; flags override both via the changed map
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cliconfig.SetLogLevel(cfg.LogLevel); err != nil {
				return err
			}

			log.Info().Interface("config", cfg).Msg("configuration")

			ts, err := traceship.New(cfg.ToLibrary(),
				traceship.WithLogger(tslog.NewZerologAdapterWithLogger(log)),
			)
			if err != nil {
				return fmt.Errorf("create traceship: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := ts.Start(ctx); err != nil {
				return fmt.Errorf("start traceship: %w", err)
			}

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				watcher := cliconfig.NewWatcher(cfgFile, cliconfig.DefaultDebounceDelay, log,
					cliconfig.ReloadLogLevel(changed, log))
				go func() {
					if err := watcher.Run(ctx); err != nil {
						log.Warn().Err(err).Msg("config watcher disabled")
					}
				}()
			}

			return waitForExit(ts, sigCh, log)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file, TOML or YAML (default: $HOME/.traceship/config.toml)")
	root.Flags().StringVar(&cfg.Source, "source", cfg.Source, "container name/ID, or file path for --source-kind file")
	root.Flags().StringVar(&cfg.SourceKind, "source-kind", cfg.SourceKind, "where lines come from: docker, file or stdin")
	root.Flags().StringVar(&cfg.Sink, "sink", cfg.Sink, "JSON-lines output file")

	root.Flags().StringVar(&cfg.DockerBinary, "docker-binary", cfg.DockerBinary, "docker CLI executable")
	root.Flags().StringVar(&cfg.Since, "since", cfg.Since, "only replay docker logs since this timestamp or duration")
	root.Flags().StringVar(&cfg.Tail, "tail", cfg.Tail, "number of docker log history lines to replay (default all)")
	root.Flags().BoolVar(&cfg.FromEnd, "from-end", cfg.FromEnd, "skip existing content of the log file")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "fallback re-check interval when following a file")

	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json (disabled when empty)")
	root.Flags().BoolVar(&cfg.FlushOnStreamEnd, "flush-on-stream-end", cfg.FlushOnStreamEnd, "write a stack trace still open when the source ends")
	root.Flags().BoolVar(&cfg.SyncWrites, "sync", cfg.SyncWrites, "fsync the output file after every record")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "read what the source holds now and exit instead of following")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("traceship")
		os.Exit(1)
	}
}
