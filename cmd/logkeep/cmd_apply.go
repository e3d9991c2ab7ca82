package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/daemon"
	"github.com/yairfalse/logkeep/internal/journal"
	"github.com/yairfalse/logkeep/internal/reconcile"
	"github.com/yairfalse/logkeep/internal/telemetry"
)

type manifestFlags struct {
	file   string
	policy string
}

func (f *manifestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Manifest describing the desired groups and streams (YAML)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Rego policy that can deny deletes")
	_ = cmd.MarkFlagRequired("file")
}

// load reads the manifest and builds a reconciler over the opened app.
func (f *manifestFlags) load(ctx context.Context, a *app, source string) (*reconcile.Manifest, *reconcile.Reconciler, error) {
	m, err := reconcile.LoadManifest(f.file)
	if err != nil {
		return nil, nil, err
	}

	var guard reconcile.Guard
	if f.policy != "" {
		pg, err := reconcile.LoadPolicyGuard(ctx, f.policy)
		if err != nil {
			return nil, nil, err
		}
		guard = pg
	}

	a.openJournal()
	r := reconcile.New(a.manager, reconcile.Config{
		Timeout: a.cfg.Lifecycle.Timeout,
		Guard:   guard,
		Journal: a.recorder(),
		Source:  source,
		Logger:  &a.logger,
	})
	return m, r, nil
}

func newApplyCmd(a *app) *cobra.Command {
	var mf manifestFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Drive groups and streams toward a manifest once",
		Example: `  logkeep apply -f logs.yaml
  logkeep apply -f logs.yaml --policy protect.rego`,
		Args: cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			m, r, err := mf.load(cmd.Context(), a, "apply")
			if err != nil {
				return err
			}

			report, err := r.Apply(cmd.Context(), m)
			if report != nil && len(report.Actions) > 0 {
				if terr := a.actionTable(report.Actions); terr != nil {
					return terr
				}
			}
			if err != nil {
				return err
			}
			if rerr := report.Err(); rerr != nil {
				return rerr
			}
			if !report.Converged() {
				return a.notConfirmed(fmt.Sprintf("%d of %d actions",
					len(report.Actions)-report.Count(journal.StatusConfirmed), len(report.Actions)))
			}

			a.success(fmt.Sprintf("%d actions confirmed in %s", len(report.Actions), report.Duration.Round(time.Millisecond)))
			return nil
		}),
	}

	mf.register(cmd)
	return cmd
}

func newDaemonCmd(a *app) *cobra.Command {
	var (
		mf          manifestFlags
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Apply a manifest on an interval and serve metrics",
		Long: `Apply a manifest on an interval, reporting drift between runs.

Metrics are served on /metrics and liveness on /health.`,
		Example: `  logkeep daemon -f logs.yaml --interval 5m --metrics-addr :9100`,
		Args:    cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			m, r, err := mf.load(cmd.Context(), a, "daemon")
			if err != nil {
				return err
			}

			if interval != 0 {
				a.cfg.Daemon.Interval = interval
			}
			if metricsAddr != "" {
				a.cfg.Daemon.MetricsAddr = metricsAddr
			}

			metrics, err := daemon.NewDaemonMetrics()
			if err != nil {
				return fmt.Errorf("init daemon metrics: %w", err)
			}

			d, err := daemon.New(r, a.manager, daemon.Config{
				Interval:    a.cfg.Daemon.Interval,
				MetricsAddr: a.cfg.Daemon.MetricsAddr,
				Manifest:    m,
				Metrics:     metrics,
				Logger:      &a.logger,
			})
			if err != nil {
				return err
			}

			a.info(fmt.Sprintf("applying %s every %s (groups: %s)",
				mf.file, a.cfg.Daemon.Interval, strings.Join(m.GroupNames(), ", ")))
			return d.Run(cmd.Context())
		}, telemetry.WithPrometheus()),
	}

	mf.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between runs (default from config, 1m)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for /metrics and /health (default from config, :9090)")
	return cmd
}
