package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want OutcomeKind
	}{
		{"nil", nil, OutcomeApplied},
		{"already exists", fmt.Errorf("create: %w", ErrAlreadyExists), OutcomeAlreadyExists},
		{"conflict", fmt.Errorf("create: %w", ErrConflict), OutcomeConflict},
		{"not found", fmt.Errorf("delete: %w", ErrNotFound), OutcomeNotFound},
		{"other", boom, OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err).Kind)
		})
	}

	assert.Same(t, boom, Classify(boom).Err)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", Applied().String())
	assert.Equal(t, "conflict", Conflict().String())
	assert.Equal(t, "failed: boom", Failed(errors.New("boom")).String())
	assert.Equal(t, "outcome(42)", OutcomeKind(42).String())
}
