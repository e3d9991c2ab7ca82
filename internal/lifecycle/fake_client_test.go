package lifecycle

import (
	"context"
	"sync/atomic"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

type fakeClient struct {
	CreateGroupFunc  func(ctx context.Context, name string) Outcome
	CreateStreamFunc func(ctx context.Context, group, stream string) Outcome
	DeleteGroupFunc  func(ctx context.Context, name string) Outcome
	DeleteStreamFunc func(ctx context.Context, group, stream string) Outcome
	ListGroupsFunc   func(ctx context.Context, prefix, token string) (Page[logresource.Group], error)
	ListStreamsFunc  func(ctx context.Context, group, prefix, token string) (Page[logresource.Stream], error)

	createGroupCalls  atomic.Int32
	createStreamCalls atomic.Int32
	deleteCalls       atomic.Int32
	listCalls         atomic.Int32
}

func (f *fakeClient) CreateGroup(ctx context.Context, name string) Outcome {
	f.createGroupCalls.Add(1)
	if f.CreateGroupFunc == nil {
		return Applied()
	}
	return f.CreateGroupFunc(ctx, name)
}

func (f *fakeClient) CreateStream(ctx context.Context, group, stream string) Outcome {
	f.createStreamCalls.Add(1)
	if f.CreateStreamFunc == nil {
		return Applied()
	}
	return f.CreateStreamFunc(ctx, group, stream)
}

func (f *fakeClient) DeleteGroup(ctx context.Context, name string) Outcome {
	f.deleteCalls.Add(1)
	if f.DeleteGroupFunc == nil {
		return Applied()
	}
	return f.DeleteGroupFunc(ctx, name)
}

func (f *fakeClient) DeleteStream(ctx context.Context, group, stream string) Outcome {
	f.deleteCalls.Add(1)
	if f.DeleteStreamFunc == nil {
		return Applied()
	}
	return f.DeleteStreamFunc(ctx, group, stream)
}

func (f *fakeClient) ListGroups(ctx context.Context, prefix, token string) (Page[logresource.Group], error) {
	f.listCalls.Add(1)
	if f.ListGroupsFunc == nil {
		return Page[logresource.Group]{}, nil
	}
	return f.ListGroupsFunc(ctx, prefix, token)
}

func (f *fakeClient) ListStreams(ctx context.Context, group, prefix, token string) (Page[logresource.Stream], error) {
	f.listCalls.Add(1)
	if f.ListStreamsFunc == nil {
		return Page[logresource.Stream]{}, nil
	}
	return f.ListStreamsFunc(ctx, group, prefix, token)
}

// groupsAfter lists the named groups only once n list calls have been made.
func groupsAfter(n int32, names ...string) func(context.Context, string, string) (Page[logresource.Group], error) {
	var calls atomic.Int32
	return func(_ context.Context, _, _ string) (Page[logresource.Group], error) {
		if calls.Add(1) <= n {
			return Page[logresource.Group]{}, nil
		}
		return Page[logresource.Group]{Items: groups(names...)}, nil
	}
}

func groups(names ...string) []logresource.Group {
	out := make([]logresource.Group, 0, len(names))
	for _, n := range names {
		out = append(out, logresource.Group{Name: n})
	}
	return out
}

func streams(group string, names ...string) []logresource.Stream {
	out := make([]logresource.Stream, 0, len(names))
	for _, n := range names {
		out = append(out, logresource.Stream{GroupName: group, Name: n})
	}
	return out
}
