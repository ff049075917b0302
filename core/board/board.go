// Package board implements the per-day dispatch board: one unassigned lane
// plus one ordered lane per vehicle. The Board type is not safe for
// concurrent use; callers serialize access (see core/dispatch.Engine).
package board

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/model"
)

type lane struct {
	vehicle model.Vehicle
	jobs    []string
}

// Diff describes the effect of one successful mutation.
type Diff struct {
	JobID      string          `json:"job_id"`
	From       model.Placement `json:"from"`
	To         model.Placement `json:"to"`
	FromStatus model.Status    `json:"from_status,omitempty"`
	ToStatus   model.Status    `json:"to_status,omitempty"`
	// Lanes lists the lanes whose ordering changed.
	Lanes []string `json:"lanes,omitempty"`
}

// LaneLayout is the ordered membership of one lane.
type LaneLayout struct {
	VehicleID string   `json:"vehicle_id"`
	JobIDs    []string `json:"job_ids"`
}

// Board holds the lanes and jobs of a single day.
type Board struct {
	date    time.Time
	order   []string
	lanes   map[string]*lane
	jobs    map[string]*model.Job
	version uint64
}

// New creates an empty board for date with the unassigned lane first and
// one lane per vehicle in catalog order.
func New(date time.Time, vehicles []model.Vehicle) (*Board, error) {
	b := &Board{
		date:  model.Day(date),
		order: []string{model.Unassigned},
		lanes: map[string]*lane{model.Unassigned: {vehicle: model.Vehicle{ID: model.Unassigned, Name: "Unassigned"}}},
		jobs:  make(map[string]*model.Job),
	}
	for _, v := range vehicles {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if _, dup := b.lanes[v.ID]; dup {
			return nil, fmt.Errorf("duplicate vehicle %s", v.ID)
		}
		b.lanes[v.ID] = &lane{vehicle: v}
		b.order = append(b.order, v.ID)
	}
	return b, nil
}

func (b *Board) Date() time.Time { return b.date }

// DateKey returns the board's YYYY-MM-DD key.
func (b *Board) DateKey() string { return model.DayKey(b.date) }

func (b *Board) Version() uint64 { return b.version }

// RestoreVersion sets the counter from persisted state. It only moves the
// version forward.
func (b *Board) RestoreVersion(v uint64) {
	if v > b.version {
		b.version = v
	}
}

// Place appends job to the end of vehicleID's lane. It is used while
// building a board and does not bump the version.
func (b *Board) Place(job model.Job, vehicleID string) error {
	if _, dup := b.jobs[job.ID]; dup {
		return fmt.Errorf("duplicate job %s", job.ID)
	}
	l, ok := b.lanes[vehicleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	if !b.hasRoom(l) {
		return fmt.Errorf("%w: %s holds %d", ErrCapacityExceeded, vehicleID, len(l.jobs))
	}
	if job.Status == "" {
		job.Status = model.StatusScheduled
	}
	j := job
	b.jobs[j.ID] = &j
	l.jobs = append(l.jobs, j.ID)
	j.Placement = model.Placement{VehicleID: vehicleID, Position: len(l.jobs) - 1}
	return nil
}

// Move places jobID at position in target. Positions are clamped. A move
// that leaves the placement unchanged succeeds with changed=false and no
// version bump.
func (b *Board) Move(jobID, target string, position int) (Diff, bool, error) {
	j, ok := b.jobs[jobID]
	if !ok {
		return Diff{}, false, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	dst, ok := b.lanes[target]
	if !ok {
		return Diff{}, false, fmt.Errorf("%w: %s", ErrUnknownVehicle, target)
	}
	from := j.Placement
	src := b.lanes[from.VehicleID]

	if src == dst {
		pos := clamp(position, 0, len(src.jobs)-1)
		if pos == from.Position {
			return Diff{JobID: jobID, From: from, To: from}, false, nil
		}
		src.jobs = remove(src.jobs, from.Position)
		src.jobs = insert(src.jobs, pos, jobID)
		b.reindex(src)
		b.version++
		return Diff{JobID: jobID, From: from, To: j.Placement, Lanes: []string{target}}, true, nil
	}

	if !b.hasRoom(dst) {
		return Diff{}, false, fmt.Errorf("%w: %s holds %d of %s", ErrCapacityExceeded, target, len(dst.jobs), dst.vehicle.Capacity)
	}
	pos := clamp(position, 0, len(dst.jobs))
	src.jobs = remove(src.jobs, from.Position)
	dst.jobs = insert(dst.jobs, pos, jobID)
	b.reindex(src)
	b.reindex(dst)
	b.version++
	return Diff{JobID: jobID, From: from, To: j.Placement, Lanes: []string{from.VehicleID, target}}, true, nil
}

// Reorder moves jobID within vehicleID's lane. A job outside that lane is
// reported as unknown.
func (b *Board) Reorder(vehicleID, jobID string, position int) (Diff, bool, error) {
	if _, ok := b.lanes[vehicleID]; !ok {
		return Diff{}, false, fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	j, ok := b.jobs[jobID]
	if !ok || j.Placement.VehicleID != vehicleID {
		return Diff{}, false, fmt.Errorf("%w: %s not in lane %s", ErrUnknownJob, jobID, vehicleID)
	}
	return b.Move(jobID, vehicleID, position)
}

// SetStatus applies a lifecycle transition to jobID. Placement is untouched.
func (b *Board) SetStatus(jobID string, status model.Status) (Diff, bool, error) {
	j, ok := b.jobs[jobID]
	if !ok {
		return Diff{}, false, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}
	changed, err := lifecycle.Transition(j.Status, status)
	if err != nil {
		return Diff{}, false, fmt.Errorf("job %s: %w", jobID, err)
	}
	d := Diff{JobID: jobID, From: j.Placement, To: j.Placement, FromStatus: j.Status, ToStatus: status}
	if !changed {
		return d, false, nil
	}
	j.Status = status
	b.version++
	return d, true, nil
}

// Job returns a copy of the job.
func (b *Board) Job(id string) (model.Job, bool) {
	j, ok := b.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *j, true
}

// Jobs returns copies of every job sorted by id.
func (b *Board) Jobs() []model.Job {
	out := make([]model.Job, 0, len(b.jobs))
	for _, j := range b.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// HasLane reports whether vehicleID names a lane of the board.
func (b *Board) HasLane(vehicleID string) bool {
	_, ok := b.lanes[vehicleID]
	return ok
}

// Lane returns a copy of the ordering of vehicleID's lane.
func (b *Board) Lane(vehicleID string) []string {
	l, ok := b.lanes[vehicleID]
	if !ok {
		return nil
	}
	return append([]string(nil), l.jobs...)
}

// Layout returns every lane in display order.
func (b *Board) Layout() []LaneLayout {
	out := make([]LaneLayout, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, LaneLayout{VehicleID: id, JobIDs: b.Lane(id)})
	}
	return out
}

// Clone returns a deep copy.
func (b *Board) Clone() *Board {
	c := &Board{
		date:    b.date,
		order:   append([]string(nil), b.order...),
		lanes:   make(map[string]*lane, len(b.lanes)),
		jobs:    make(map[string]*model.Job, len(b.jobs)),
		version: b.version,
	}
	for id, l := range b.lanes {
		c.lanes[id] = &lane{vehicle: l.vehicle, jobs: append([]string(nil), l.jobs...)}
	}
	for id, j := range b.jobs {
		cp := *j
		c.jobs[id] = &cp
	}
	return c
}

// CheckInvariants verifies lane membership, capacity and placement
// consistency.
func (b *Board) CheckInvariants() error {
	seen := make(map[string]string, len(b.jobs))
	for _, id := range b.order {
		l := b.lanes[id]
		if id != model.Unassigned && !l.vehicle.Capacity.IsUnlimited() && len(l.jobs) > int(l.vehicle.Capacity) {
			return fmt.Errorf("lane %s holds %d jobs over capacity %s", id, len(l.jobs), l.vehicle.Capacity)
		}
		for i, jid := range l.jobs {
			if other, dup := seen[jid]; dup {
				return fmt.Errorf("job %s in lanes %s and %s", jid, other, id)
			}
			seen[jid] = id
			j, ok := b.jobs[jid]
			if !ok {
				return fmt.Errorf("lane %s references unknown job %s", id, jid)
			}
			if j.Placement.VehicleID != id || j.Placement.Position != i {
				return fmt.Errorf("job %s placement %s does not match %s#%d", jid, j.Placement, id, i)
			}
		}
	}
	if len(seen) != len(b.jobs) {
		return fmt.Errorf("%d jobs on board but %d placed in lanes", len(b.jobs), len(seen))
	}
	return nil
}

func (b *Board) hasRoom(l *lane) bool {
	if l.vehicle.ID == model.Unassigned {
		return true
	}
	return l.vehicle.Capacity.Allows(len(l.jobs))
}

func (b *Board) reindex(l *lane) {
	for i, id := range l.jobs {
		b.jobs[id].Placement = model.Placement{VehicleID: l.vehicle.ID, Position: i}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func remove(s []string, i int) []string {
	return append(s[:i], s[i+1:]...)
}

func insert(s []string, i int, v string) []string {
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
