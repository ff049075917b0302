package board

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fieldboard/core/lifecycle"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrIllegalTransition is shared with the lifecycle package so that both
	// packages match under errors.Is.
	ErrIllegalTransition   = lifecycle.ErrIllegalTransition
	ErrNothingToUndo       = errors.New("nothing to undo")
	ErrStaleVersion        = errors.New("stale version")
	ErrUnknownJob          = errors.New("unknown job")
	ErrUnknownVehicle      = errors.New("unknown vehicle")
	ErrPersistenceDegraded = errors.New("persistence degraded")
)

// LoadError aborts a board load. It is always retryable.
type LoadError struct {
	Date string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load board %s: %v", e.Date, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the load.
func (e *LoadError) Retryable() bool { return true }

// Stable error codes exposed to clients and metrics labels.
const (
	CodeOK                  = "ok"
	CodeCapacityExceeded    = "capacity_exceeded"
	CodeIllegalTransition   = "illegal_transition"
	CodeNothingToUndo       = "nothing_to_undo"
	CodeStaleVersion        = "stale_version"
	CodeUnknownJob          = "unknown_job"
	CodeUnknownVehicle      = "unknown_vehicle"
	CodeLoadError           = "load_error"
	CodePersistenceDegraded = "persistence_degraded"
	CodeInternal            = "internal"
)

// Code maps err onto its taxonomy code. A nil error yields CodeOK.
func Code(err error) string {
	var le *LoadError
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrStaleVersion):
		return CodeStaleVersion
	case errors.Is(err, ErrCapacityExceeded):
		return CodeCapacityExceeded
	case errors.Is(err, ErrIllegalTransition):
		return CodeIllegalTransition
	case errors.Is(err, ErrNothingToUndo):
		return CodeNothingToUndo
	case errors.Is(err, ErrUnknownJob):
		return CodeUnknownJob
	case errors.Is(err, ErrUnknownVehicle):
		return CodeUnknownVehicle
	case errors.As(err, &le):
		return CodeLoadError
	case errors.Is(err, ErrPersistenceDegraded):
		return CodePersistenceDegraded
	default:
		return CodeInternal
	}
}
