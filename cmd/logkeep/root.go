package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/config"
	"github.com/yairfalse/logkeep/internal/journal"
	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/internal/plugin"
	"github.com/yairfalse/logkeep/internal/reconcile"
	"github.com/yairfalse/logkeep/internal/telemetry"
)

var version = "0.1.0"

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "logkeep.toml"

type rootFlags struct {
	configPath    string
	backend       string
	region        string
	debug         bool
	timeout       time.Duration
	retryInterval time.Duration
}

// app carries everything a subcommand needs once opened.
type app struct {
	flags rootFlags
	out   io.Writer

	cfg       *config.Config
	logger    zerolog.Logger
	telemetry *telemetry.Provider
	backend   plugin.Backend
	manager   *lifecycle.Manager
	journal   *journal.Journal
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "logkeep",
		Short: "Create and delete log groups and streams on an eventually consistent service",
		Long: `logkeep creates and deletes log groups and log streams and waits until
the change is visible, tolerating other actors racing on the same names.

Exit codes:
  0  the change was confirmed
  2  the change was accepted but not confirmed before the timeout
  1  an error occurred`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			a.out = cmd.OutOrStdout()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.flags.configPath, "config", "c", "", "Config file (default ./"+defaultConfigPath+" if present)")
	flags.StringVar(&a.flags.backend, "backend", "", "Backend: aws or memory")
	flags.StringVar(&a.flags.region, "region", "", "AWS region")
	flags.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")
	flags.DurationVar(&a.flags.timeout, "timeout", 0, "How long to wait for a change to become visible")
	flags.DurationVar(&a.flags.retryInterval, "retry-interval", 0, "Pause between visibility checks")

	cmd.SetVersionTemplate("logkeep {{.Version}}\n")

	cmd.AddCommand(
		newGroupCmd(a),
		newStreamCmd(a),
		newRolesCmd(a),
		newWhoamiCmd(a),
		newApplyCmd(a),
		newDaemonCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

// loadConfig resolves the config file and applies flag overrides.
func (a *app) loadConfig() error {
	var cfg *config.Config
	switch {
	case a.flags.configPath != "":
		loaded, err := config.Load(a.flags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(defaultConfigPath); err == nil {
			loaded, err := config.Load(defaultConfigPath)
			if err != nil {
				return err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
	}

	if a.flags.backend != "" {
		cfg.Backend = a.flags.backend
	}
	if a.flags.region != "" {
		cfg.AWS.Region = a.flags.region
	}
	if a.flags.debug {
		cfg.Log.Level = "debug"
	}
	if a.flags.timeout != 0 {
		cfg.Lifecycle.Timeout = a.flags.timeout
	}
	if a.flags.retryInterval != 0 {
		cfg.Lifecycle.RetryInterval = a.flags.retryInterval
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	return nil
}

// open loads config, logging, telemetry, the backend and the manager.
func (a *app) open(ctx context.Context, opts ...telemetry.Option) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	logger, err := telemetry.NewConsoleLogger(a.cfg.OTEL.ServiceName, a.cfg.Log.Level)
	if err != nil {
		return err
	}
	a.logger = logger

	a.telemetry, err = telemetry.NewProvider(ctx, a.cfg.OTEL, opts...)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	a.backend, err = plugin.Open(ctx, a.cfg.Backend, a.cfg)
	if err != nil {
		return err
	}

	metrics, err := lifecycle.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	a.manager = lifecycle.NewManager(a.backend, lifecycle.Config{
		RetryInterval: a.cfg.Lifecycle.RetryInterval,
		Logger:        &a.logger,
		Metrics:       metrics,
		Tracer:        a.telemetry.Tracer(),
	})

	a.logger.Debug().
		Str("backend", a.backend.Name()).
		Dur("timeout", a.cfg.Lifecycle.Timeout).
		Dur("retry_interval", a.manager.RetryInterval()).
		Msg("logkeep ready")
	return nil
}

// openJournal opens the journal unless disabled. Failure to open is logged
// and leaves the journal nil; commands still run.
func (a *app) openJournal() {
	if a.cfg.Journal.Disabled {
		return
	}
	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		a.logger.Warn().Err(err).Str("path", a.cfg.Journal.Path).Msg("journal unavailable, continuing without it")
		return
	}
	a.journal = j
}

// recorder returns the journal as a reconcile.Recorder, or nil when there
// is no journal.
func (a *app) recorder() reconcile.Recorder {
	if a.journal == nil {
		return nil
	}
	return a.journal
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close journal")
		}
	}
	if a.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Debug().Err(err).Msg("telemetry shutdown")
		}
	}
}

// record writes one CLI operation to the journal.
func (a *app) record(op, key string, start time.Time, confirmed bool, err error) {
	if a.journal == nil {
		return
	}
	entry := journal.Entry{
		Op:       op,
		Key:      key,
		Status:   reconcile.StatusFor(confirmed, err),
		Duration: time.Since(start),
		Source:   "cli",
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if _, werr := a.journal.Record(entry); werr != nil {
		a.logger.Warn().Err(werr).Msg("journal write failed")
	}
}

// withOpen wraps a RunE so the app is opened before and closed after.
func (a *app) withOpen(fn func(cmd *cobra.Command, args []string) error, opts ...telemetry.Option) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		if err := a.open(cmd.Context(), opts...); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}

// notConfirmed reports an unconfirmed change and returns errNotConfirmed.
func (a *app) notConfirmed(what string) error {
	a.warn(fmt.Sprintf("%s not confirmed within %s; it may still become visible", what, a.cfg.Lifecycle.Timeout))
	return errNotConfirmed
}

var errUnsupported = errors.New("not supported by this backend")
