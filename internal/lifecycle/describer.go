package lifecycle

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// ListGroups returns every group whose name starts with prefix.
// An empty prefix lists all groups.
func (m *Manager) ListGroups(ctx context.Context, prefix string) ([]logresource.Group, error) {
	return List(ctx, func(ctx context.Context, token string) (Page[logresource.Group], error) {
		return m.client.ListGroups(ctx, prefix, token)
	})
}

// ListStreams returns every stream in group whose name starts with prefix.
// A missing group yields an empty slice.
func (m *Manager) ListStreams(ctx context.Context, group, prefix string) ([]logresource.Stream, error) {
	return List(ctx, func(ctx context.Context, token string) (Page[logresource.Stream], error) {
		return m.client.ListStreams(ctx, group, prefix, token)
	})
}

// DescribeGroup returns the group named exactly name, or nil if it does not
// exist. The prefix listing over-matches; only an exact name is accepted.
func (m *Manager) DescribeGroup(ctx context.Context, name string) (*logresource.Group, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.describe_group",
		trace.WithAttributes(attribute.String("log.group", name)))
	defer span.End()

	groups, err := m.ListGroups(ctx, name)
	if err != nil {
		spanFail(span, err)
		return nil, fmt.Errorf("describe group %q: %w", name, err)
	}

	for i := range groups {
		if groups[i].Name == name {
			g := groups[i]
			return &g, nil
		}
	}
	return nil, nil
}

// DescribeStream returns the stream named exactly stream in group, or nil.
func (m *Manager) DescribeStream(ctx context.Context, group, stream string) (*logresource.Stream, error) {
	ctx, span := m.tracer.Start(ctx, "lifecycle.describe_stream",
		trace.WithAttributes(
			attribute.String("log.group", group),
			attribute.String("log.stream", stream)))
	defer span.End()

	streams, err := m.ListStreams(ctx, group, stream)
	if err != nil {
		spanFail(span, err)
		return nil, fmt.Errorf("describe stream %q: %w", logresource.StreamKey(group, stream), err)
	}

	for i := range streams {
		if streams[i].Name == stream {
			s := streams[i]
			return &s, nil
		}
	}
	return nil, nil
}
