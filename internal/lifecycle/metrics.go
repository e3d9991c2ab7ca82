package lifecycle

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records lifecycle operations using OTEL semantic conventions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations   metric.Int64Counter
	waitDuration metric.Float64Histogram
	polls        metric.Int64Counter
}

// NewMetrics creates lifecycle metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetricsWithProvider(otel.GetMeterProvider())
}

func newMetricsWithProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("logkeep.lifecycle")

	operations, err := meter.Int64Counter(
		"logkeep.lifecycle.operations",
		metric.WithDescription("Mutating calls issued, by classified outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	waitDuration, err := meter.Float64Histogram(
		"logkeep.lifecycle.wait.duration",
		metric.WithDescription("Time spent waiting for a change to become visible"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	polls, err := meter.Int64Counter(
		"logkeep.lifecycle.polls",
		metric.WithDescription("Describe probes issued while waiting"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operations:   operations,
		waitDuration: waitDuration,
		polls:        polls,
	}, nil
}

// RecordOutcome records the classified outcome of a mutating call.
func (m *Metrics) RecordOutcome(ctx context.Context, op string, outcome Outcome) {
	if m == nil {
		return
	}
	m.operations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("outcome", outcome.Kind.String()),
		),
	)
}

// RecordWait records how a wait ended.
func (m *Metrics) RecordWait(ctx context.Context, op string, state WaitState, polls int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.waitDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("state", state.String()),
		),
	)
	m.polls.Add(ctx, int64(polls),
		metric.WithAttributes(
			attribute.String("operation", op),
		),
	)
}
