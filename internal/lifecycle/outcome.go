package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors adapters wrap native API errors with. Classify maps them
// onto an Outcome; List treats ErrNotFound as an empty result.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrConflict      = errors.New("operation in progress")
)

// OutcomeKind classifies the result of a mutating call.
type OutcomeKind int

const (
	// OutcomeApplied means the request was accepted.
	OutcomeApplied OutcomeKind = iota
	// OutcomeAlreadyExists means the resource was already in the desired state.
	OutcomeAlreadyExists
	// OutcomeConflict means another actor is mid-transition on the same resource.
	OutcomeConflict
	// OutcomeNotFound means the resource (or its parent) does not exist.
	OutcomeNotFound
	// OutcomeFailed is any unclassified error.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeConflict:
		return "conflict"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is what a mutating Client call returns. Err is set only for
// OutcomeFailed and holds the unmodified remote error.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Applied returns an OutcomeApplied.
func Applied() Outcome { return Outcome{Kind: OutcomeApplied} }

// AlreadyExists returns an OutcomeAlreadyExists.
func AlreadyExists() Outcome { return Outcome{Kind: OutcomeAlreadyExists} }

// Conflict returns an OutcomeConflict.
func Conflict() Outcome { return Outcome{Kind: OutcomeConflict} }

// NotFound returns an OutcomeNotFound.
func NotFound() Outcome { return Outcome{Kind: OutcomeNotFound} }

// Failed wraps an unclassified error.
func Failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, Err: err} }

// Classify maps an error onto an Outcome using the package sentinels.
// A nil error is Applied.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Applied()
	case errors.Is(err, ErrAlreadyExists):
		return AlreadyExists()
	case errors.Is(err, ErrConflict):
		return Conflict()
	case errors.Is(err, ErrNotFound):
		return NotFound()
	default:
		return Failed(err)
	}
}

func (o Outcome) String() string {
	if o.Err != nil {
		return o.Kind.String() + ": " + o.Err.Error()
	}
	return o.Kind.String()
}
