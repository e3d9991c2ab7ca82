// Package daemon runs reconciliation on an interval alongside a metrics
// endpoint, stopping on signal or context cancellation.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yairfalse/logkeep/internal/reconcile"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

const observeParallelism = 4

// Applier drives a manifest toward the desired state.
type Applier interface {
	Apply(ctx context.Context, m *reconcile.Manifest) (*reconcile.Report, error)
}

// Observer reads the current state of one group.
type Observer interface {
	DescribeGroup(ctx context.Context, name string) (*logresource.Group, error)
}

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
	// MetricsAddr is where /metrics and /health are served. Empty disables
	// the server.
	MetricsAddr string
	Manifest    *reconcile.Manifest
	Metrics     *DaemonMetrics
	Logger      *zerolog.Logger
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

// Daemon manages continuous reconciliation
type Daemon struct {
	applier  Applier
	observer Observer
	manifest *reconcile.Manifest
	interval time.Duration
	addr     string
	handler  http.Handler
	metrics  *DaemonMetrics
	drift    *DriftTracker
	logger   zerolog.Logger
	tracer   trace.Tracer

	startTime time.Time
	runCount  atomic.Int64

	mu         sync.RWMutex
	lastStatus string
	boundAddr  string
	ready      chan struct{}
	readyOnce  sync.Once
}

// New creates a daemon.
func New(applier Applier, observer Observer, cfg Config) (*Daemon, error) {
	if cfg.Manifest == nil {
		return nil, errors.New("daemon needs a manifest")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("daemon interval must be positive (got %s)", cfg.Interval)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	handler := cfg.MetricsHandler
	if handler == nil {
		handler = promhttp.Handler()
	}

	return &Daemon{
		applier:   applier,
		observer:  observer,
		manifest:  cfg.Manifest,
		interval:  cfg.Interval,
		addr:      cfg.MetricsAddr,
		handler:   handler,
		metrics:   cfg.Metrics,
		drift:     NewDriftTracker(),
		logger:    logger.With().Str("component", "daemon").Logger(),
		tracer:    otel.Tracer("logkeep.daemon"),
		startTime: time.Now(),
		ready:     make(chan struct{}),
	}, nil
}

// Run blocks until ctx is cancelled, a termination signal arrives, or the
// metrics server fails. Cancellation and signals are a clean exit.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.markReady()

	var g run.Group

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.loop(ctx)
		}, func(error) {
			cancel()
		})
	}

	if d.addr != "" {
		ln, err := net.Listen("tcp", d.addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", d.addr, err)
		}
		d.mu.Lock()
		d.boundAddr = ln.Addr().String()
		d.mu.Unlock()

		srv := &http.Server{Handler: d.mux(), ReadHeaderTimeout: 5 * time.Second}
		g.Add(func() error {
			d.logger.Info().Str("addr", ln.Addr().String()).Msg("starting metrics server")
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	d.markReady()
	err := g.Run()

	var sig run.SignalError
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.logger.Info().Msg("daemon stopped")
		return nil
	case errors.As(err, &sig):
		d.logger.Info().Stringer("signal", sig.Signal).Msg("received signal, daemon stopped")
		return nil
	default:
		return err
	}
}

// Ready is closed once Run has bound its listener, or has returned
// without getting that far.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

func (d *Daemon) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

// MetricsAddr returns the address the metrics server is bound to, or ""
// before Run or when disabled.
func (d *Daemon) MetricsAddr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.boundAddr
}

func (d *Daemon) loop(ctx context.Context) error {
	d.RunOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reconcile pass and returns its status.
func (d *Daemon) RunOnce(ctx context.Context) string {
	d.runCount.Add(1)
	start := time.Now()

	ctx, span := d.tracer.Start(ctx, "daemon.run",
		trace.WithAttributes(attribute.Int64("daemon.run", d.runCount.Load())))
	defer span.End()

	if before, err := d.observe(ctx); err == nil {
		if drift := d.drift.Compute(before); len(drift) > 0 {
			for _, dr := range drift {
				d.logger.Warn().Ctx(ctx).
					Str("group", dr.Group.Name).
					Str("change", string(dr.Type)).
					Msg("managed group changed outside logkeep")
			}
			d.metrics.RecordDrift(ctx, drift)
		}
	} else {
		d.logger.Warn().Ctx(ctx).Err(err).Msg("observe before run failed")
	}

	report, err := d.applier.Apply(ctx, d.manifest)
	status := runStatus(report, err)
	d.metrics.RecordRun(ctx, status, time.Since(start), report)

	if after, err := d.observe(ctx); err == nil {
		d.drift.Update(after)
		d.metrics.RecordObserved(ctx, len(after))
	}

	d.mu.Lock()
	d.lastStatus = status
	d.mu.Unlock()

	event := d.logger.Info().Ctx(ctx)
	if status != RunConverged {
		event = d.logger.Warn().Ctx(ctx)
	}
	if err != nil {
		event = event.Err(err)
	}
	span.SetAttributes(attribute.String("daemon.status", status))
	event.Str("status", status).Dur("duration", time.Since(start)).Msg("reconcile run finished")

	return status
}

// observe describes every managed group that currently exists, at most
// observeParallelism at a time. Results keep manifest order.
func (d *Daemon) observe(ctx context.Context) ([]logresource.Group, error) {
	names := d.manifest.GroupNames()
	found := make([]*logresource.Group, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(observeParallelism)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			grp, err := d.observer.DescribeGroup(gctx, name)
			if err != nil {
				return fmt.Errorf("describe %s: %w", name, err)
			}
			found[i] = grp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var groups []logresource.Group
	for _, grp := range found {
		if grp != nil {
			groups = append(groups, *grp)
		}
	}
	return groups, nil
}

func runStatus(report *reconcile.Report, err error) string {
	switch {
	case err != nil || report == nil:
		return RunFailed
	case report.Converged():
		return RunConverged
	default:
		return RunPartial
	}
}

func (d *Daemon) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.Health())
	})
	return mux
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return HealthStatus{
		Status:     "healthy",
		Uptime:     int64(time.Since(d.startTime).Seconds()),
		Runs:       d.runCount.Load(),
		LastStatus: d.lastStatus,
	}
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status     string `json:"status"`
	Uptime     int64  `json:"uptime_seconds"`
	Runs       int64  `json:"runs"`
	LastStatus string `json:"last_status,omitempty"`
}

// RunCount returns total reconcile runs started.
func (d *Daemon) RunCount() int64 {
	return d.runCount.Load()
}
