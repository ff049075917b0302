package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/logger"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// Command names used in events, logs and metrics.
const (
	CommandAssign       = "assign"
	CommandReorder      = "reorder"
	CommandUndo         = "undo"
	CommandChangeStatus = "change_status"
)

// Result is returned by every successful command.
type Result struct {
	Date    string     `json:"date"`
	Version uint64     `json:"version"`
	Changed bool       `json:"changed"`
	Board   board.View `json:"board"`
}

type saveScheduler interface {
	markDirty()
	markStatus(jobID string, status model.Status)
}

// Engine is the single writer of one day's board. All commands hold the
// write lock for their whole duration; snapshots take the read lock. Once
// the board is evicted every command fails with ErrClosed.
type Engine struct {
	mu       sync.RWMutex
	board    *board.Board
	undo     *board.UndoLog
	degraded bool
	closed   bool

	log     logger.Logger
	bus     eventbus.EventBus
	changes *eventbus.TypedBus[events.BoardChanged]
	persist saveScheduler
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithBus publishes engine events on bus in addition to the per-board
// change stream.
func WithBus(bus eventbus.EventBus) EngineOption {
	return func(e *Engine) { e.bus = bus }
}

// WithUndoDepth bounds the undo log.
func WithUndoDepth(n int) EngineOption {
	return func(e *Engine) { e.undo = board.NewUndoLog(n) }
}

// NewEngine takes ownership of b.
func NewEngine(b *board.Board, opts ...EngineOption) *Engine {
	e := &Engine{
		board:   b,
		undo:    board.NewUndoLog(1),
		log:     logger.NopLogger{},
		changes: eventbus.NewTyped[events.BoardChanged](),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Date returns the board's day key.
func (e *Engine) Date() string { return e.board.DateKey() }

// Version returns the current board version.
func (e *Engine) Version() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.board.Version()
}

// Snapshot returns a detached view of the board.
func (e *Engine) Snapshot() board.View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewLocked()
}

// Subscribe streams BoardChanged events of this board.
func (e *Engine) Subscribe() <-chan events.BoardChanged { return e.changes.Subscribe() }

// Unsubscribe stops a stream returned by Subscribe.
func (e *Engine) Unsubscribe(ch <-chan events.BoardChanged) { e.changes.Unsubscribe(ch) }

// UndoEntries returns the undo log, oldest first.
func (e *Engine) UndoEntries() []board.UndoEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.undo.Entries()
}

// Assign moves jobID to position in vehicleID's lane. Moving a job from a
// vehicle to the unassigned lane records an undo entry.
func (e *Engine) Assign(expectedVersion uint64, jobID, vehicleID string, position int) (Result, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.admit(expectedVersion); err != nil {
		return e.reject(CommandAssign, start, err)
	}
	var entry *board.UndoEntry
	if j, ok := e.board.Job(jobID); ok && vehicleID == model.Unassigned && j.Placement.Assigned() {
		entry = &board.UndoEntry{JobID: jobID, PreviousVehicleID: j.Placement.VehicleID, PreviousPosition: j.Placement.Position}
	}
	d, changed, err := e.board.Move(jobID, vehicleID, position)
	if err != nil {
		return e.reject(CommandAssign, start, err)
	}
	if changed && entry != nil {
		e.undo.Push(*entry)
	}
	return e.accept(CommandAssign, start, d, changed), nil
}

// Reorder moves jobID within vehicleID's lane. Reorders are never undoable.
func (e *Engine) Reorder(expectedVersion uint64, vehicleID, jobID string, position int) (Result, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.admit(expectedVersion); err != nil {
		return e.reject(CommandReorder, start, err)
	}
	d, changed, err := e.board.Reorder(vehicleID, jobID, position)
	if err != nil {
		return e.reject(CommandReorder, start, err)
	}
	return e.accept(CommandReorder, start, d, changed), nil
}

// UndoLastUnassign puts the most recently unassigned job back where it
// was. The entry stays on the log when the move is rejected.
func (e *Engine) UndoLastUnassign(expectedVersion uint64) (Result, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.admit(expectedVersion); err != nil {
		return e.reject(CommandUndo, start, err)
	}
	entry, ok := e.undo.Peek()
	if !ok {
		return e.reject(CommandUndo, start, board.ErrNothingToUndo)
	}
	d, changed, err := e.board.Move(entry.JobID, entry.PreviousVehicleID, entry.PreviousPosition)
	if err != nil {
		return e.reject(CommandUndo, start, fmt.Errorf("undo %s: %w", entry.JobID, err))
	}
	e.undo.Pop()
	return e.accept(CommandUndo, start, d, changed), nil
}

// ChangeStatus applies a lifecycle transition. Placement is unaffected.
func (e *Engine) ChangeStatus(expectedVersion uint64, jobID string, status model.Status) (Result, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.admit(expectedVersion); err != nil {
		return e.reject(CommandChangeStatus, start, err)
	}
	if _, err := model.ParseStatus(string(status)); err != nil || status == "" {
		return e.reject(CommandChangeStatus, start, fmt.Errorf("%w: unknown status %q", board.ErrIllegalTransition, status))
	}
	return e.setStatusLocked(start, jobID, status)
}

// PerformAction applies a board action such as start or complete to jobID.
func (e *Engine) PerformAction(expectedVersion uint64, jobID string, action lifecycle.Action) (Result, error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.admit(expectedVersion); err != nil {
		return e.reject(CommandChangeStatus, start, err)
	}
	j, ok := e.board.Job(jobID)
	if !ok {
		return e.reject(CommandChangeStatus, start, fmt.Errorf("%w: %s", board.ErrUnknownJob, jobID))
	}
	next, err := lifecycle.Apply(j.Status, action)
	if err != nil {
		return e.reject(CommandChangeStatus, start, fmt.Errorf("job %s: %w", jobID, err))
	}
	return e.setStatusLocked(start, jobID, next)
}

func (e *Engine) setStatusLocked(start time.Time, jobID string, status model.Status) (Result, error) {
	d, changed, err := e.board.SetStatus(jobID, status)
	if err != nil {
		return e.reject(CommandChangeStatus, start, err)
	}
	if changed && e.persist != nil {
		e.persist.markStatus(jobID, status)
	}
	return e.accept(CommandChangeStatus, start, d, changed), nil
}

// State returns the persistable state of the board.
func (e *Engine) State() boardstore.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := boardstore.State{
		Date:    e.board.DateKey(),
		Version: e.board.Version(),
		SavedAt: time.Now().UTC(),
	}
	for _, l := range e.board.Layout() {
		st.Lanes = append(st.Lanes, boardstore.LaneRecord{VehicleID: l.VehicleID, JobIDs: l.JobIDs})
	}
	for _, j := range e.board.Jobs() {
		st.Statuses = append(st.Statuses, boardstore.JobStatusRecord{JobID: j.ID, Status: j.Status})
	}
	return st
}

// Degraded reports whether the last save failed.
func (e *Engine) Degraded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.degraded
}

func (e *Engine) setDegraded(v bool) {
	e.mu.Lock()
	e.degraded = v
	e.mu.Unlock()
}

// close waits for the running command, then refuses new ones.
func (e *Engine) close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.changes.Close()
}

func (e *Engine) admit(expected uint64) error {
	if e.closed {
		return ErrClosed
	}
	if v := e.board.Version(); expected != v {
		return fmt.Errorf("%w: expected %d, board is at %d", board.ErrStaleVersion, expected, v)
	}
	return nil
}

func (e *Engine) viewLocked() board.View {
	v := e.board.View()
	v.PersistenceDegraded = e.degraded
	v.UndoAvailable = e.undo.Len() > 0
	return v
}

func (e *Engine) accept(cmd string, start time.Time, d board.Diff, changed bool) Result {
	snap := e.viewLocked()
	outcome := events.OutcomeNoop
	if changed {
		outcome = events.OutcomeOK
		ev := events.NewBoardChanged(cmd, d, snap)
		e.changes.Publish(ev)
		if e.bus != nil {
			e.bus.Publish(ev)
		}
		if e.persist != nil {
			e.persist.markDirty()
		}
		e.log.Debugw("board command applied", map[string]any{
			"date":    snap.Date,
			"command": cmd,
			"job_id":  d.JobID,
			"from":    d.From.String(),
			"to":      d.To.String(),
			"version": snap.Version,
		})
	}
	e.observe(cmd, outcome, board.CodeOK, start)
	return Result{Date: snap.Date, Version: snap.Version, Changed: changed, Board: snap}
}

func (e *Engine) reject(cmd string, start time.Time, err error) (Result, error) {
	code := board.Code(err)
	e.log.Infof("board %s: %s rejected: %v", e.board.DateKey(), cmd, err)
	e.observe(cmd, events.OutcomeRejected, code, start)
	return Result{}, err
}

func (e *Engine) observe(cmd, outcome, reason string, start time.Time) {
	lat := time.Since(start)
	commandLatency.WithLabelValues(cmd).Observe(lat.Seconds())
	commandsTotal.WithLabelValues(cmd, outcome, reason).Inc()
	if e.bus != nil {
		e.bus.Publish(events.CommandHandled{
			Date:    e.board.DateKey(),
			Command: cmd,
			Outcome: outcome,
			Reason:  reason,
			Latency: lat,
		})
	}
}
