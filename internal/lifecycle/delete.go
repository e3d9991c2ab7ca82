package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// DeleteGroup deletes the group and waits until describe no longer sees it.
// A group that is already gone returns true without polling. false with a
// nil error means absence was not confirmed before timeout or cancellation.
func (m *Manager) DeleteGroup(ctx context.Context, name string, timeout time.Duration) (bool, error) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "lifecycle.delete_group",
		trace.WithAttributes(attribute.String("log.group", name)))
	defer span.End()

	if name == "" {
		return false, fmt.Errorf("delete group: %w", ErrEmptyName)
	}

	outcome := m.client.DeleteGroup(ctx, name)
	m.metrics.RecordOutcome(ctx, OpDeleteGroup, outcome)
	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))

	if cancelled(ctx, outcome) {
		m.gaveUp(ctx, OpDeleteGroup, name, start, timeout)
		return false, nil
	}

	switch outcome.Kind {
	case OutcomeNotFound:
		m.logger.Debug().Ctx(ctx).Str("group", name).Msg("group already absent")
		return true, nil
	case OutcomeFailed:
		spanFail(span, outcome.Err)
		return false, outcome.Err
	}

	result, err := Wait(ctx, m.waiter, timeout, func(ctx context.Context) (struct{}, bool, error) {
		g, err := m.DescribeGroup(ctx, name)
		if err != nil {
			return struct{}{}, false, err
		}
		if g != nil {
			m.logger.Debug().Ctx(ctx).Str("group", name).Msg("group still visible")
		}
		return struct{}{}, g == nil, nil
	})
	if err != nil {
		spanFail(span, err)
		return false, err
	}

	m.recordWait(ctx, OpDeleteGroup, name, result.State, result.Polls, result.Elapsed, timeout)
	return result.Confirmed(), nil
}

// DeleteStream deletes the stream and waits until describe no longer sees
// it. A vanished group counts as the stream being gone.
func (m *Manager) DeleteStream(ctx context.Context, group, stream string, timeout time.Duration) (bool, error) {
	start := time.Now()
	key := logresource.StreamKey(group, stream)
	ctx, span := m.tracer.Start(ctx, "lifecycle.delete_stream",
		trace.WithAttributes(
			attribute.String("log.group", group),
			attribute.String("log.stream", stream)))
	defer span.End()

	if group == "" || stream == "" {
		return false, fmt.Errorf("delete stream: %w", ErrEmptyName)
	}

	outcome := m.client.DeleteStream(ctx, group, stream)
	m.metrics.RecordOutcome(ctx, OpDeleteStream, outcome)
	span.SetAttributes(attribute.String("outcome", outcome.Kind.String()))

	if cancelled(ctx, outcome) {
		m.gaveUp(ctx, OpDeleteStream, key, start, timeout)
		return false, nil
	}

	switch outcome.Kind {
	case OutcomeNotFound:
		m.logger.Debug().Ctx(ctx).Str("key", key).Msg("stream already absent")
		return true, nil
	case OutcomeFailed:
		spanFail(span, outcome.Err)
		return false, outcome.Err
	}

	result, err := Wait(ctx, m.waiter, timeout, func(ctx context.Context) (struct{}, bool, error) {
		// a vanished group lists as no streams, so it reads as absent here
		s, err := m.DescribeStream(ctx, group, stream)
		if err != nil {
			return struct{}{}, false, err
		}
		if s != nil {
			m.logger.Debug().Ctx(ctx).Str("key", key).Msg("stream still visible")
		}
		return struct{}{}, s == nil, nil
	})
	if err != nil {
		spanFail(span, err)
		return false, err
	}

	m.recordWait(ctx, OpDeleteStream, key, result.State, result.Polls, result.Elapsed, timeout)
	return result.Confirmed(), nil
}
