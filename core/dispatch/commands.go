package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/model"
)

// ErrInvalidCommand marks malformed input such as a bad date key.
var ErrInvalidCommand = errors.New("invalid command")

// AssignJob moves a job to a lane position.
type AssignJob struct {
	Date            string `json:"date"`
	JobID           string `json:"job_id"`
	VehicleID       string `json:"vehicle_id"`
	Position        int    `json:"position"`
	ExpectedVersion uint64 `json:"expected_version"`
}

// ReorderJob moves a job within its lane.
type ReorderJob struct {
	Date            string `json:"date"`
	VehicleID       string `json:"vehicle_id"`
	JobID           string `json:"job_id"`
	Position        int    `json:"position"`
	ExpectedVersion uint64 `json:"expected_version"`
}

// UndoUnassign reverts the latest unassign.
type UndoUnassign struct {
	Date            string `json:"date"`
	ExpectedVersion uint64 `json:"expected_version"`
}

// ChangeStatus moves a job along its lifecycle, either to NewStatus or by
// performing Action. Exactly one of them is set.
type ChangeStatus struct {
	Date            string           `json:"date"`
	JobID           string           `json:"job_id"`
	NewStatus       model.Status     `json:"new_status,omitempty"`
	Action          lifecycle.Action `json:"action,omitempty"`
	ExpectedVersion uint64           `json:"expected_version"`
}

// GetBoard requests a snapshot.
type GetBoard struct {
	Date string `json:"date"`
}

func (m *Manager) engineFor(ctx context.Context, date string) (*Engine, error) {
	day, err := model.ParseDay(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return m.Load(ctx, day)
}

// Assign handles AssignJob, loading the board if needed.
func (m *Manager) Assign(ctx context.Context, c AssignJob) (Result, error) {
	e, err := m.engineFor(ctx, c.Date)
	if err != nil {
		return Result{}, err
	}
	return e.Assign(c.ExpectedVersion, c.JobID, c.VehicleID, c.Position)
}

// Reorder handles ReorderJob.
func (m *Manager) Reorder(ctx context.Context, c ReorderJob) (Result, error) {
	e, err := m.engineFor(ctx, c.Date)
	if err != nil {
		return Result{}, err
	}
	return e.Reorder(c.ExpectedVersion, c.VehicleID, c.JobID, c.Position)
}

// Undo handles UndoUnassign.
func (m *Manager) Undo(ctx context.Context, c UndoUnassign) (Result, error) {
	e, err := m.engineFor(ctx, c.Date)
	if err != nil {
		return Result{}, err
	}
	return e.UndoLastUnassign(c.ExpectedVersion)
}

// ChangeStatus handles ChangeStatus.
func (m *Manager) ChangeStatus(ctx context.Context, c ChangeStatus) (Result, error) {
	e, err := m.engineFor(ctx, c.Date)
	if err != nil {
		return Result{}, err
	}
	switch {
	case c.Action != "" && c.NewStatus != "":
		return Result{}, fmt.Errorf("%w: both new_status and action given", ErrInvalidCommand)
	case c.Action != "":
		return e.PerformAction(c.ExpectedVersion, c.JobID, c.Action)
	case c.NewStatus == "":
		return Result{}, fmt.Errorf("%w: new_status or action required", ErrInvalidCommand)
	}
	return e.ChangeStatus(c.ExpectedVersion, c.JobID, c.NewStatus)
}

// Board handles GetBoard.
func (m *Manager) Board(ctx context.Context, c GetBoard) (board.View, error) {
	e, err := m.engineFor(ctx, c.Date)
	if err != nil {
		return board.View{}, err
	}
	return e.Snapshot(), nil
}

// Watch subscribes to the changes of a day's board, loading it if needed.
// The returned function releases the subscription. The channel is closed
// when the board is evicted.
func (m *Manager) Watch(ctx context.Context, date string) (<-chan events.BoardChanged, func(), error) {
	e, err := m.engineFor(ctx, date)
	if err != nil {
		return nil, nil, err
	}
	ch := e.Subscribe()
	return ch, func() { e.Unsubscribe(ch) }, nil
}
