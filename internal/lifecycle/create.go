package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// CreateGroup creates the group and waits until describe sees it.
//
// An existing group or a concurrent creation by another actor is not an
// error. The returned group is nil (with a nil error) when it was not
// confirmed before timeout or cancellation; it may still appear later.
func (m *Manager) CreateGroup(ctx context.Context, name string, timeout time.Duration) (*logresource.Group, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "lifecycle.create_group",
		trace.WithAttributes(attribute.String("log.group", name)))
	defer span.End()

	if name == "" {
		return nil, fmt.Errorf("create group: %w", ErrEmptyName)
	}

	outcome := m.client.CreateGroup(ctx, name)
	m.metrics.RecordOutcome(ctx, OpCreateGroup, outcome)
	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))

	if cancelled(ctx, outcome) {
		m.gaveUp(ctx, OpCreateGroup, name, start, timeout)
		return nil, nil
	}
	if err := createError(outcome); err != nil {
		spanFail(span, err)
		return nil, err
	}

	m.logger.Debug().Ctx(ctx).
		Str("group", name).
		Stringer("outcome", outcome.Kind).
		Msg("create group issued, waiting for visibility")

	result, err := Wait(ctx, m.waiter, timeout, func(ctx context.Context) (*logresource.Group, bool, error) {
		g, err := m.DescribeGroup(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if g == nil {
			m.logger.Debug().Ctx(ctx).Str("group", name).Msg("group not yet visible")
		}
		return g, g != nil, nil
	})
	if err != nil {
		spanFail(span, err)
		return nil, err
	}

	m.recordWait(ctx, OpCreateGroup, name, result.State, result.Polls, result.Elapsed, timeout)
	return result.Value, nil
}

// CreateStream creates the stream and waits until describe sees it. The
// group is created first if it does not exist.
//
// The group creation gets the full timeout and so does the stream, so the
// worst case is twice the timeout.
func (m *Manager) CreateStream(ctx context.Context, group, stream string, timeout time.Duration) (*logresource.Stream, error) {
	start := time.Now()
	key := logresource.StreamKey(group, stream)
	ctx, span := m.tracer.Start(ctx, "lifecycle.create_stream",
		trace.WithAttributes(
			attribute.String("log.group", group),
			attribute.String("log.stream", stream)))
	defer span.End()

	if group == "" || stream == "" {
		return nil, fmt.Errorf("create stream: %w", ErrEmptyName)
	}

	g, err := m.DescribeGroup(ctx, group)
	if err != nil {
		if ctx.Err() != nil {
			m.gaveUp(ctx, OpCreateStream, key, start, timeout)
			return nil, nil
		}
		spanFail(span, err)
		return nil, err
	}
	if g == nil {
		m.logger.Debug().Ctx(ctx).Str("group", group).Msg("group missing, creating it first")

		g, err = m.CreateGroup(ctx, group, timeout)
		if err != nil {
			if ctx.Err() != nil {
				m.gaveUp(ctx, OpCreateStream, key, start, timeout)
				return nil, nil
			}
			spanFail(span, err)
			return nil, err
		}
		if g == nil {
			m.logger.Warn().Ctx(ctx).
				Str("key", key).
				Msg("group not confirmed, stream not created")
			return nil, nil
		}
	}

	outcome := m.client.CreateStream(ctx, group, stream)
	m.metrics.RecordOutcome(ctx, OpCreateStream, outcome)
	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))

	if cancelled(ctx, outcome) {
		m.gaveUp(ctx, OpCreateStream, key, start, timeout)
		return nil, nil
	}
	if outcome.Kind == OutcomeNotFound {
		err := fmt.Errorf("create stream %q: group vanished: %w", key, ErrNotFound)
		spanFail(span, err)
		return nil, err
	}
	if err := createError(outcome); err != nil {
		spanFail(span, err)
		return nil, err
	}

	m.logger.Debug().Ctx(ctx).
		Str("key", key).
		Stringer("outcome", outcome.Kind).
		Msg("create stream issued, waiting for visibility")

	result, err := Wait(ctx, m.waiter, timeout, func(ctx context.Context) (*logresource.Stream, bool, error) {
		s, err := m.DescribeStream(ctx, group, stream)
		if err != nil {
			return nil, false, err
		}
		if s == nil {
			m.logger.Debug().Ctx(ctx).Str("key", key).Msg("stream not yet visible")
		}
		return s, s != nil, nil
	})
	if err != nil {
		spanFail(span, err)
		return nil, err
	}

	m.recordWait(ctx, OpCreateStream, key, result.State, result.Polls, result.Elapsed, timeout)
	return result.Value, nil
}

// createError returns nil for outcomes that proceed to the wait.
// Unclassified errors come back unmodified.
func createError(outcome Outcome) error {
	switch outcome.Kind {
	case OutcomeApplied, OutcomeAlreadyExists, OutcomeConflict:
		return nil
	case OutcomeFailed:
		return outcome.Err
	default:
		return fmt.Errorf("unexpected create outcome: %s", outcome)
	}
}
