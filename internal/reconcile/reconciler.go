package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/logkeep/internal/journal"
	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

// Manager is the subset of lifecycle.Manager the reconciler drives.
type Manager interface {
	CreateGroup(ctx context.Context, name string, timeout time.Duration) (*logresource.Group, error)
	CreateStream(ctx context.Context, group, stream string, timeout time.Duration) (*logresource.Stream, error)
	DeleteGroup(ctx context.Context, name string, timeout time.Duration) (bool, error)
	DeleteStream(ctx context.Context, group, stream string, timeout time.Duration) (bool, error)
}

// Recorder persists the outcome of each action.
type Recorder interface {
	Record(e journal.Entry) (journal.Entry, error)
}

// Action is the result of driving one manifest entry.
type Action struct {
	Op       string         `json:"op"`
	Key      string         `json:"key"`
	Status   journal.Status `json:"status"`
	Duration time.Duration  `json:"duration"`
	Reasons  []string       `json:"reasons,omitempty"`
	Err      error          `json:"-"`
}

// Report summarizes one Apply.
type Report struct {
	Actions  []Action      `json:"actions"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Count returns how many actions ended with status.
func (r *Report) Count(status journal.Status) int {
	n := 0
	for _, a := range r.Actions {
		if a.Status == status {
			n++
		}
	}
	return n
}

// Converged reports whether every action was confirmed.
func (r *Report) Converged() bool {
	return r.Count(journal.StatusConfirmed) == len(r.Actions)
}

// Err joins the errors of failed actions.
func (r *Report) Err() error {
	var errs []error
	for _, a := range r.Actions {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", a.Op, a.Key, a.Err))
		}
	}
	return errors.Join(errs...)
}

// Config holds Reconciler settings.
type Config struct {
	// Timeout bounds each wait.
	Timeout time.Duration
	// Guard is consulted before deletes. Nil allows everything.
	Guard Guard
	// Journal records each action. Nil disables recording.
	Journal Recorder
	// Source tags journal entries (e.g., "apply", "daemon").
	Source string
	Logger *zerolog.Logger
}

// Reconciler applies manifests.
type Reconciler struct {
	manager Manager
	timeout time.Duration
	guard   Guard
	journal Recorder
	source  string
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New creates a Reconciler.
func New(manager Manager, cfg Config) *Reconciler {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Reconciler{
		manager: manager,
		timeout: cfg.Timeout,
		guard:   cfg.Guard,
		journal: cfg.Journal,
		source:  cfg.Source,
		logger:  logger.With().Str("component", "reconcile").Logger(),
		tracer:  otel.Tracer("logkeep.reconcile"),
	}
}

// Apply drives the manager toward m. Groups are handled in manifest order;
// a present group is confirmed before its streams are touched. Individual
// failures are reported per action and do not stop the run. Apply only
// returns an error when ctx ends before every entry was attempted.
func (r *Reconciler) Apply(ctx context.Context, m *Manifest) (*Report, error) {
	ctx, span := r.tracer.Start(ctx, "reconcile.apply",
		trace.WithAttributes(attribute.Int("manifest.groups", len(m.Groups))))
	defer span.End()

	report := &Report{Started: time.Now()}
	defer func() { report.Duration = time.Since(report.Started) }()

	for _, g := range m.Groups {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return report, fmt.Errorf("apply interrupted: %w", err)
		}

		switch g.State {
		case StateAbsent:
			report.Actions = append(report.Actions, r.deleteGroup(ctx, g.Name))
		default:
			r.applyPresentGroup(ctx, g, report)
		}
	}

	span.SetAttributes(
		attribute.Int("actions", len(report.Actions)),
		attribute.Bool("converged", report.Converged()))

	r.logger.Info().Ctx(ctx).
		Int("actions", len(report.Actions)).
		Int("confirmed", report.Count(journal.StatusConfirmed)).
		Int("unconfirmed", report.Count(journal.StatusUnconfirmed)).
		Int("denied", report.Count(journal.StatusDenied)).
		Int("errors", report.Count(journal.StatusError)).
		Msg("apply finished")

	return report, nil
}

func (r *Reconciler) applyPresentGroup(ctx context.Context, g GroupSpec, report *Report) {
	groupAction := r.run(ctx, lifecycle.OpCreateGroup, g.Name, func() (bool, error) {
		created, err := r.manager.CreateGroup(ctx, g.Name, r.timeout)
		return created != nil, err
	})
	report.Actions = append(report.Actions, groupAction)

	for _, s := range g.Streams {
		key := logresource.StreamKey(g.Name, s.Name)

		if groupAction.Status != journal.StatusConfirmed {
			report.Actions = append(report.Actions, r.skip(ctx, s, key, groupAction))
			continue
		}

		if s.State == StateAbsent {
			report.Actions = append(report.Actions, r.deleteStream(ctx, g.Name, s.Name))
			continue
		}

		report.Actions = append(report.Actions, r.run(ctx, lifecycle.OpCreateStream, key, func() (bool, error) {
			created, err := r.manager.CreateStream(ctx, g.Name, s.Name, r.timeout)
			return created != nil, err
		}))
	}
}

func (r *Reconciler) deleteGroup(ctx context.Context, name string) Action {
	if a, denied := r.checkGuard(ctx, GuardInput{Op: lifecycle.OpDeleteGroup, Group: name}, name); denied {
		return a
	}
	return r.run(ctx, lifecycle.OpDeleteGroup, name, func() (bool, error) {
		return r.manager.DeleteGroup(ctx, name, r.timeout)
	})
}

func (r *Reconciler) deleteStream(ctx context.Context, group, stream string) Action {
	key := logresource.StreamKey(group, stream)
	if a, denied := r.checkGuard(ctx, GuardInput{Op: lifecycle.OpDeleteStream, Group: group, Stream: stream}, key); denied {
		return a
	}
	return r.run(ctx, lifecycle.OpDeleteStream, key, func() (bool, error) {
		return r.manager.DeleteStream(ctx, group, stream, r.timeout)
	})
}

// checkGuard returns a finished Action when the delete must not proceed.
func (r *Reconciler) checkGuard(ctx context.Context, input GuardInput, key string) (Action, bool) {
	if r.guard == nil {
		return Action{}, false
	}

	reasons, err := r.guard.Check(ctx, input)
	if err != nil {
		return r.record(ctx, Action{Op: input.Op, Key: key, Status: StatusFor(false, err), Err: err}), true
	}
	if len(reasons) > 0 {
		r.logger.Warn().Ctx(ctx).
			Str("op", input.Op).
			Str("key", key).
			Strs("reasons", reasons).
			Msg("delete denied by policy")
		return r.record(ctx, Action{Op: input.Op, Key: key, Status: journal.StatusDenied, Reasons: reasons}), true
	}
	return Action{}, false
}

// skip records a stream action that was not attempted because its group
// was not confirmed.
func (r *Reconciler) skip(ctx context.Context, s StreamSpec, key string, groupAction Action) Action {
	op := lifecycle.OpCreateStream
	if s.State == StateAbsent {
		op = lifecycle.OpDeleteStream
	}
	return r.record(ctx, Action{
		Op:      op,
		Key:     key,
		Status:  journal.StatusUnconfirmed,
		Reasons: []string{fmt.Sprintf("group %s", groupAction.Status)},
	})
}

func (r *Reconciler) run(ctx context.Context, op, key string, fn func() (bool, error)) Action {
	start := time.Now()
	confirmed, err := fn()
	return r.record(ctx, Action{
		Op:       op,
		Key:      key,
		Status:   StatusFor(confirmed, err),
		Duration: time.Since(start),
		Err:      err,
	})
}

func (r *Reconciler) record(ctx context.Context, a Action) Action {
	event := r.logger.Debug().Ctx(ctx)
	if a.Err != nil {
		event = r.logger.Error().Ctx(ctx).Err(a.Err)
	}
	event.Str("op", a.Op).Str("key", a.Key).Str("status", string(a.Status)).Dur("duration", a.Duration).Msg("action finished")

	if r.journal == nil {
		return a
	}

	entry := journal.Entry{
		Op:       a.Op,
		Key:      a.Key,
		Status:   a.Status,
		Duration: a.Duration,
		Source:   r.source,
	}
	if a.Err != nil {
		entry.Error = a.Err.Error()
	} else if len(a.Reasons) > 0 {
		entry.Error = fmt.Sprint(a.Reasons)
	}
	if _, err := r.journal.Record(entry); err != nil {
		r.logger.Warn().Ctx(ctx).Err(err).Str("key", a.Key).Msg("journal write failed")
	}
	return a
}

// StatusFor maps an orchestrator result onto a journal status.
func StatusFor(confirmed bool, err error) journal.Status {
	switch {
	case err != nil:
		return journal.StatusError
	case confirmed:
		return journal.StatusConfirmed
	default:
		return journal.StatusUnconfirmed
	}
}
