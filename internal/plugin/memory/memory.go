// Package memory implements an in-process control plane that mimics the
// visibility lag of a real logging service. Mutations are authoritative
// immediately; listings only reflect them once the visibility delay passes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yairfalse/logkeep/internal/config"
	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/internal/plugin"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

// LocalAccount is what AccountID reports.
const LocalAccount = "000000000000"

func init() {
	plugin.Register(config.BackendMemory, func(_ context.Context, cfg *config.Config) (plugin.Backend, error) {
		return New(Options{
			VisibilityDelay: cfg.Memory.VisibilityDelay,
			PageSize:        cfg.Memory.PageSize,
		}), nil
	})
}

// Options configures a Backend.
type Options struct {
	// VisibilityDelay is how long a change takes to show up in listings.
	VisibilityDelay time.Duration
	// PageSize caps the items per list page. Values below 1 mean 50.
	PageSize int
}

// record tracks the existence of one resource across a single transition.
type record struct {
	exists    bool
	prev      bool
	changedAt time.Time
	createdAt time.Time
}

func (r *record) pending(now time.Time, delay time.Duration) bool {
	return now.Before(r.changedAt.Add(delay))
}

func (r *record) visible(now time.Time, delay time.Duration) bool {
	if r.pending(now, delay) {
		return r.prev
	}
	return r.exists
}

func (r *record) transition(exists bool, now time.Time, delay time.Duration) {
	r.prev = r.visible(now, delay)
	r.exists = exists
	r.changedAt = now
	if exists {
		r.createdAt = now
	}
}

type groupRecord struct {
	record
	streams map[string]*record
}

// Backend is a simulated eventually consistent control plane.
type Backend struct {
	mu       sync.Mutex
	delay    time.Duration
	pageSize int
	now      func() time.Time
	groups   map[string]*groupRecord
}

// New creates an empty Backend.
func New(opts Options) *Backend {
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	return &Backend{
		delay:    opts.VisibilityDelay,
		pageSize: opts.PageSize,
		now:      time.Now,
		groups:   make(map[string]*groupRecord),
	}
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return config.BackendMemory
}

// AccountID always reports LocalAccount.
func (b *Backend) AccountID(context.Context) string {
	return LocalAccount
}

// CreateGroup starts creating a group.
func (b *Backend) CreateGroup(ctx context.Context, name string) lifecycle.Outcome {
	if err := ctx.Err(); err != nil {
		return lifecycle.Failed(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	g, ok := b.groups[name]
	switch {
	case !ok:
		g = &groupRecord{streams: make(map[string]*record)}
		g.transition(true, now, b.delay)
		b.groups[name] = g
		return lifecycle.Applied()
	case g.exists:
		return lifecycle.AlreadyExists()
	case g.pending(now, b.delay):
		return lifecycle.Conflict()
	default:
		g.transition(true, now, b.delay)
		g.streams = make(map[string]*record)
		return lifecycle.Applied()
	}
}

// CreateStream starts creating a stream. The group must exist.
func (b *Backend) CreateStream(ctx context.Context, group, stream string) lifecycle.Outcome {
	if err := ctx.Err(); err != nil {
		return lifecycle.Failed(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	g, ok := b.groups[group]
	if !ok || !g.exists {
		return lifecycle.NotFound()
	}

	s, ok := g.streams[stream]
	switch {
	case !ok:
		s = &record{}
		s.transition(true, now, b.delay)
		g.streams[stream] = s
		return lifecycle.Applied()
	case s.exists:
		return lifecycle.AlreadyExists()
	case s.pending(now, b.delay):
		return lifecycle.Conflict()
	default:
		s.transition(true, now, b.delay)
		return lifecycle.Applied()
	}
}

// DeleteGroup starts deleting a group and every stream in it.
func (b *Backend) DeleteGroup(ctx context.Context, name string) lifecycle.Outcome {
	if err := ctx.Err(); err != nil {
		return lifecycle.Failed(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	g, ok := b.groups[name]
	switch {
	case !ok || !g.exists:
		return lifecycle.NotFound()
	case g.pending(now, b.delay):
		return lifecycle.Conflict()
	}

	g.transition(false, now, b.delay)
	for _, s := range g.streams {
		if s.exists {
			s.transition(false, now, b.delay)
		}
	}
	return lifecycle.Applied()
}

// DeleteStream starts deleting a stream.
func (b *Backend) DeleteStream(ctx context.Context, group, stream string) lifecycle.Outcome {
	if err := ctx.Err(); err != nil {
		return lifecycle.Failed(err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()

	g, ok := b.groups[group]
	if !ok || !g.exists {
		return lifecycle.NotFound()
	}

	s, ok := g.streams[stream]
	switch {
	case !ok || !s.exists:
		return lifecycle.NotFound()
	case s.pending(now, b.delay):
		return lifecycle.Conflict()
	}

	s.transition(false, now, b.delay)
	return lifecycle.Applied()
}

// ListGroups returns one page of visible groups.
func (b *Backend) ListGroups(ctx context.Context, prefix, token string) (lifecycle.Page[logresource.Group], error) {
	if err := ctx.Err(); err != nil {
		return lifecycle.Page[logresource.Group]{}, err
	}

	b.mu.Lock()
	now := b.now()
	var items []logresource.Group
	for name, g := range b.groups {
		if strings.HasPrefix(name, prefix) && g.visible(now, b.delay) {
			items = append(items, logresource.Group{
				Name:      name,
				ARN:       groupARN(name),
				CreatedAt: g.createdAt,
			})
		}
	}
	b.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return paginate(items, token, b.pageSize)
}

// ListStreams returns one page of visible streams in group. A group that is
// not visible yields an error matching lifecycle.ErrNotFound.
func (b *Backend) ListStreams(ctx context.Context, group, prefix, token string) (lifecycle.Page[logresource.Stream], error) {
	if err := ctx.Err(); err != nil {
		return lifecycle.Page[logresource.Stream]{}, err
	}

	b.mu.Lock()
	now := b.now()
	g, ok := b.groups[group]
	if !ok || !g.visible(now, b.delay) {
		b.mu.Unlock()
		return lifecycle.Page[logresource.Stream]{}, fmt.Errorf("group %s: %w", group, lifecycle.ErrNotFound)
	}

	var items []logresource.Stream
	for name, s := range g.streams {
		if strings.HasPrefix(name, prefix) && s.visible(now, b.delay) {
			items = append(items, logresource.Stream{
				GroupName: group,
				Name:      name,
				ARN:       groupARN(group) + ":log-stream:" + name,
				CreatedAt: s.createdAt,
			})
		}
	}
	b.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return paginate(items, token, b.pageSize)
}

func groupARN(name string) string {
	return "arn:memory:logs:local:" + LocalAccount + ":log-group:" + name
}

// paginate slices items at the offset encoded in token.
func paginate[T any](items []T, token string, size int) (lifecycle.Page[T], error) {
	offset := 0
	if token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 || n > len(items) {
			return lifecycle.Page[T]{}, fmt.Errorf("invalid page token %q", token)
		}
		offset = n
	}

	end := offset + size
	if end > len(items) {
		end = len(items)
	}

	page := lifecycle.Page[T]{Items: append([]T{}, items[offset:end]...)}
	if end < len(items) {
		page.NextToken = strconv.Itoa(end)
	}
	return page, nil
}
