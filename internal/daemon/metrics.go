package daemon

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/logkeep/internal/reconcile"
)

// Run statuses.
const (
	RunConverged = "converged"
	RunPartial   = "partial"
	RunFailed    = "failed"
)

// DaemonMetrics holds operational metrics using OTEL semantic conventions
type DaemonMetrics struct {
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	actions     metric.Int64Counter
	drift       metric.Int64Counter
	observed    metric.Int64Gauge
}

// NewDaemonMetrics creates daemon metrics on the global meter provider.
func NewDaemonMetrics() (*DaemonMetrics, error) {
	return newDaemonMetricsWithProvider(otel.GetMeterProvider())
}

func newDaemonMetricsWithProvider(provider metric.MeterProvider) (*DaemonMetrics, error) {
	meter := provider.Meter("logkeep.daemon")

	runs, err := meter.Int64Counter(
		"logkeep.daemon.runs",
		metric.WithDescription("Number of reconcile runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"logkeep.daemon.run.duration",
		metric.WithDescription("Duration of reconcile runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	actions, err := meter.Int64Counter(
		"logkeep.daemon.actions",
		metric.WithDescription("Number of manifest actions by final status"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, err
	}

	drift, err := meter.Int64Counter(
		"logkeep.daemon.drift",
		metric.WithDescription("Out-of-band changes to managed groups seen between runs"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, err
	}

	observed, err := meter.Int64Gauge(
		"logkeep.daemon.groups.observed",
		metric.WithDescription("Managed groups visible after the last run"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, err
	}

	return &DaemonMetrics{
		runs:        runs,
		runDuration: runDuration,
		actions:     actions,
		drift:       drift,
		observed:    observed,
	}, nil
}

// RecordRun records one reconcile run and the status of its actions.
func (m *DaemonMetrics) RecordRun(ctx context.Context, status string, duration time.Duration, report *reconcile.Report) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)

	if report == nil {
		return
	}
	for _, a := range report.Actions {
		m.actions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", a.Op),
			attribute.String("status", string(a.Status)),
		))
	}
}

// RecordDrift records out-of-band changes.
func (m *DaemonMetrics) RecordDrift(ctx context.Context, drift []Drift) {
	if m == nil {
		return
	}
	for _, d := range drift {
		m.drift.Add(ctx, 1, metric.WithAttributes(attribute.String("change.type", string(d.Type))))
	}
}

// RecordObserved records how many managed groups are visible.
func (m *DaemonMetrics) RecordObserved(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.observed.Record(ctx, int64(count))
}
