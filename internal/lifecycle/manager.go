package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used for spans, metrics and logs.
const (
	OpCreateGroup  = "create_group"
	OpCreateStream = "create_stream"
	OpDeleteGroup  = "delete_group"
	OpDeleteStream = "delete_stream"
)

// ErrEmptyName is returned when a group or stream name is empty.
var ErrEmptyName = errors.New("name must not be empty")

// Config holds Manager settings.
type Config struct {
	// RetryInterval is the pause between describe probes.
	RetryInterval time.Duration
	Logger        *zerolog.Logger
	Metrics       *Metrics
	Tracer        trace.Tracer
}

// Manager runs lifecycle operations against a Client.
// It holds collaborators only; every describe is a fresh round trip.
type Manager struct {
	client  Client
	waiter  Waiter
	logger  zerolog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewManager creates a Manager for client.
func NewManager(client Client, cfg Config) *Manager {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("logkeep.lifecycle")
	}

	return &Manager{
		client:  client,
		waiter:  Waiter{Interval: cfg.RetryInterval},
		logger:  logger.With().Str("component", "lifecycle").Logger(),
		metrics: cfg.Metrics,
		tracer:  tracer,
	}
}

// RetryInterval returns the effective pause between probes.
func (m *Manager) RetryInterval() time.Duration {
	return m.waiter.interval()
}

func (m *Manager) recordWait(ctx context.Context, op, key string, state WaitState, polls int, elapsed time.Duration, timeout time.Duration) {
	m.metrics.RecordWait(ctx, op, state, polls, elapsed)

	if state == WaitConfirmed {
		m.logger.Debug().Ctx(ctx).
			Str("operation", op).
			Str("key", key).
			Int("polls", polls).
			Dur("elapsed", elapsed).
			Msg("change confirmed")
		return
	}

	event := m.logger.Warn().Ctx(ctx).
		Str("operation", op).
		Str("key", key).
		Int("polls", polls).
		Dur("elapsed", elapsed).
		Dur("timeout", timeout)
	if ctx.Err() != nil {
		event.Msg("wait cancelled before change was confirmed")
		return
	}
	event.Msg("timed out waiting for change to be confirmed")
}

// gaveUp records a change cut short by cancellation before or instead of
// its wait. It is reported the same way as a timeout.
func (m *Manager) gaveUp(ctx context.Context, op, key string, start time.Time, timeout time.Duration) {
	m.recordWait(ctx, op, key, WaitGaveUp, 0, time.Since(start), timeout)
}

// cancelled reports whether a failed outcome is only the caller's
// cancellation surfacing through the client.
func cancelled(ctx context.Context, outcome Outcome) bool {
	return outcome.Kind == OutcomeFailed && ctx.Err() != nil
}

func spanFail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
