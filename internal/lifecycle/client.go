// Package lifecycle provides idempotent create, delete and wait primitives
// for log groups and log streams on an eventually consistent control plane.
//
// A create or delete returns before the change is visible to describe, and
// other actors may be racing on the same names. Every operation here issues
// at most one mutating call and then polls describe until the expected
// state is observed, the timeout elapses, or the context is cancelled.
package lifecycle

import (
	"context"

	"github.com/yairfalse/logkeep/pkg/logresource"
)

// Client is the remote control plane as seen by this package.
// Mutating calls never return a Go error: expected conditions come back as
// an Outcome kind and everything else as OutcomeFailed.
type Client interface {
	CreateGroup(ctx context.Context, name string) Outcome
	CreateStream(ctx context.Context, group, stream string) Outcome
	DeleteGroup(ctx context.Context, name string) Outcome
	DeleteStream(ctx context.Context, group, stream string) Outcome

	// ListGroups returns one page of groups whose names start with prefix.
	// An empty token requests the first page.
	ListGroups(ctx context.Context, prefix, token string) (Page[logresource.Group], error)

	// ListStreams returns one page of streams in group. It returns an error
	// matching ErrNotFound when the group does not exist.
	ListStreams(ctx context.Context, group, prefix, token string) (Page[logresource.Stream], error)
}
