// Package lifecycle holds the job status state machine. Status moves only
// forward, one step at a time, and is independent of the job's lane.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fieldboard/core/model"
)

// ErrIllegalTransition is returned for skips, backward moves and unknown
// statuses.
var ErrIllegalTransition = errors.New("illegal transition")

// Action is a forward step a dispatcher can trigger from the board.
type Action string

const (
	ActionStart    Action = "start"
	ActionComplete Action = "complete"
)

// Transition validates a status change. It returns changed=false with a nil
// error when from equals to.
func Transition(from, to model.Status) (changed bool, err error) {
	if from.Step() < 0 || to.Step() < 0 {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if from == to {
		return false, nil
	}
	if to.Step() != from.Step()+1 {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return true, nil
}

// Actions lists the actions available for a job in the given status.
func Actions(s model.Status) []Action {
	switch s {
	case model.StatusScheduled:
		return []Action{ActionStart}
	case model.StatusInProgress:
		return []Action{ActionComplete}
	default:
		return nil
	}
}

// Apply returns the status reached by performing the action from s.
func Apply(s model.Status, a Action) (model.Status, error) {
	var next model.Status
	switch a {
	case ActionStart:
		next = model.StatusInProgress
	case ActionComplete:
		next = model.StatusCompleted
	default:
		return s, fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, a)
	}
	if _, err := Transition(s, next); err != nil {
		return s, err
	}
	return next, nil
}

// Later returns whichever status is further along the lifecycle.
func Later(a, b model.Status) model.Status {
	if b.Step() > a.Step() {
		return b
	}
	return a
}
