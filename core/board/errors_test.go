package board

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	cases := map[string]error{
		CodeOK:                  nil,
		CodeCapacityExceeded:    fmt.Errorf("%w: v1", ErrCapacityExceeded),
		CodeIllegalTransition:   fmt.Errorf("job A: %w", ErrIllegalTransition),
		CodeNothingToUndo:       ErrNothingToUndo,
		CodeStaleVersion:        fmt.Errorf("%w: want 3", ErrStaleVersion),
		CodeUnknownJob:          ErrUnknownJob,
		CodeUnknownVehicle:      ErrUnknownVehicle,
		CodeLoadError:           &LoadError{Date: "2024-06-01", Err: errors.New("registry down")},
		CodePersistenceDegraded: ErrPersistenceDegraded,
		CodeInternal:            errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Code(err))
	}
}

func TestLoadErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := fmt.Errorf("wrapped: %w", &LoadError{Date: "2024-06-01", Err: cause})
	var le *LoadError
	assert.True(t, errors.As(err, &le))
	assert.True(t, le.Retryable())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "2024-06-01")
}
