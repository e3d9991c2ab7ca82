package lifecycle

import (
	"context"
	"fmt"
	"time"
)

// DefaultRetryInterval is the pause between describe probes. It is short and
// fixed; there is no backoff.
const DefaultRetryInterval = 100 * time.Millisecond

// WaitState is the state of a Waiter run.
type WaitState int

const (
	// WaitPolling means the probe has not yet observed the expected state.
	WaitPolling WaitState = iota
	// WaitConfirmed means the probe observed the expected state.
	WaitConfirmed
	// WaitGaveUp means the timeout elapsed or ctx ended before confirmation.
	WaitGaveUp
)

func (s WaitState) String() string {
	switch s {
	case WaitPolling:
		return "polling"
	case WaitConfirmed:
		return "confirmed"
	case WaitGaveUp:
		return "gave_up"
	default:
		return fmt.Sprintf("wait_state(%d)", int(s))
	}
}

// Probe reports whether the expected condition holds. value is returned to
// the caller on confirmation.
type Probe[T any] func(ctx context.Context) (value T, ok bool, err error)

// WaitResult is the terminal state of a Wait call.
type WaitResult[T any] struct {
	Value   T
	State   WaitState
	Polls   int
	Elapsed time.Duration
}

// Confirmed reports whether the probe observed the expected condition.
func (r WaitResult[T]) Confirmed() bool {
	return r.State == WaitConfirmed
}

// Waiter polls a Probe at a fixed interval.
type Waiter struct {
	Interval time.Duration
}

func (w Waiter) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultRetryInterval
	}
	return w.Interval
}

// Wait runs probe until it confirms, the timeout elapses or ctx is done.
//
// The deadline and ctx are checked before every probe, so Wait returns within
// timeout plus one interval plus one in-flight probe. Timeout and
// cancellation both end in WaitGaveUp with a nil error. Only an unclassified
// probe error is returned.
func Wait[T any](ctx context.Context, w Waiter, timeout time.Duration, probe Probe[T]) (WaitResult[T], error) {
	start := time.Now()
	deadline := start.Add(timeout)
	interval := w.interval()

	result := WaitResult[T]{State: WaitPolling}
	gaveUp := func() (WaitResult[T], error) {
		result.State = WaitGaveUp
		result.Elapsed = time.Since(start)
		return result, nil
	}

	for {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return gaveUp()
		}

		value, ok, err := probe(ctx)
		result.Polls++
		if err != nil {
			// a probe cut short by cancellation is a cancelled wait, not a failure
			if ctx.Err() != nil {
				return gaveUp()
			}
			result.State = WaitGaveUp
			result.Elapsed = time.Since(start)
			return result, err
		}
		if ok {
			result.Value = value
			result.State = WaitConfirmed
			result.Elapsed = time.Since(start)
			return result, nil
		}

		if !Sleep(ctx, interval) {
			return gaveUp()
		}
	}
}

// Sleep pauses for d or until ctx is done. It returns false if ctx ended
// the sleep early.
func Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
