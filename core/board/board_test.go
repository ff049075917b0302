package board

import (
	"math/rand"
	"testing"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newBoard(t *testing.T, vehicles []model.Vehicle, jobs ...string) *Board {
	t.Helper()
	b, err := New(day, vehicles)
	require.NoError(t, err)
	for i, id := range jobs {
		require.NoError(t, b.Place(model.Job{
			ID:            id,
			ProjectRef:    "P-" + id,
			ScheduledTime: day.Add(time.Duration(8+i) * time.Hour),
			Priority:      model.PriorityMedium,
		}, model.Unassigned))
	}
	return b
}

func TestNewRejectsBadCatalog(t *testing.T) {
	_, err := New(day, []model.Vehicle{{ID: "v1"}, {ID: "v1"}})
	assert.Error(t, err)
	_, err = New(day, []model.Vehicle{{ID: model.Unassigned}})
	assert.Error(t, err)
}

func TestMoveUnknownJobAndVehicle(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A")
	_, _, err := b.Move("Z", "v1", 0)
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, _, err = b.Move("A", "v9", 0)
	assert.ErrorIs(t, err, ErrUnknownVehicle)
	assert.Equal(t, uint64(0), b.Version())
}

func TestCapacityBoundary(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1", Capacity: 2}}, "A", "B", "C")
	_, _, err := b.Move("A", "v1", 0)
	require.NoError(t, err)
	_, _, err = b.Move("B", "v1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, b.Lane("v1"))

	before := b.View()
	_, _, err = b.Move("C", "v1", 0)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, before, b.View())

	_, _, err = b.Move("A", model.Unassigned, 0)
	require.NoError(t, err)
	_, _, err = b.Move("C", "v1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B"}, b.Lane("v1"))
	require.NoError(t, b.CheckInvariants())
}

func TestMoveWithinFullLaneSkipsCapacity(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1", Capacity: 2}}, "A", "B")
	_, _, _ = b.Move("A", "v1", 0)
	_, _, _ = b.Move("B", "v1", 1)
	_, changed, err := b.Move("B", "v1", 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"B", "A"}, b.Lane("v1"))
}

func TestMoveClampsPosition(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A", "B")
	_, _, err := b.Move("A", "v1", 42)
	require.NoError(t, err)
	d, _, err := b.Move("B", "v1", -3)
	require.NoError(t, err)
	assert.Equal(t, model.Placement{VehicleID: "v1", Position: 0}, d.To)
	assert.Equal(t, []string{"B", "A"}, b.Lane("v1"))

	j, ok := b.Job("A")
	require.True(t, ok)
	assert.Equal(t, 1, j.Placement.Position)
}

func TestReorderStability(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A", "B", "C")
	for i, id := range []string{"A", "B", "C"} {
		_, _, err := b.Move(id, "v1", i)
		require.NoError(t, err)
	}
	v := b.Version()
	_, changed, err := b.Reorder("v1", "B", 0)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"B", "A", "C"}, b.Lane("v1"))
	assert.Equal(t, v+1, b.Version())

	_, changed, err = b.Reorder("v1", "B", 0)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, v+1, b.Version())

	_, changed, err = b.Reorder("v1", "C", 99)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestReorderJobOutsideLane(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A")
	_, _, err := b.Reorder("v1", "A", 0)
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, _, err = b.Reorder("v2", "A", 0)
	assert.ErrorIs(t, err, ErrUnknownVehicle)
}

func TestSetStatus(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A")
	_, changed, err := b.SetStatus("A", model.StatusScheduled)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = b.SetStatus("A", model.StatusCompleted)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	d, changed, err := b.SetStatus("A", model.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.StatusScheduled, d.FromStatus)
	assert.Equal(t, uint64(1), b.Version())

	_, _, err = b.SetStatus("A", model.StatusScheduled)
	assert.ErrorIs(t, err, ErrIllegalTransition)
	_, _, err = b.SetStatus("Z", model.StatusInProgress)
	assert.ErrorIs(t, err, ErrUnknownJob)

	j, _ := b.Job("A")
	assert.Equal(t, model.Placement{VehicleID: model.Unassigned, Position: 0}, j.Placement)
}

func TestPlaceRespectsCapacity(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1", Capacity: 1}})
	require.NoError(t, b.Place(model.Job{ID: "A"}, "v1"))
	assert.ErrorIs(t, b.Place(model.Job{ID: "B"}, "v1"), ErrCapacityExceeded)
	assert.Error(t, b.Place(model.Job{ID: "A"}, model.Unassigned))
	assert.ErrorIs(t, b.Place(model.Job{ID: "C"}, "v9"), ErrUnknownVehicle)
	j, _ := b.Job("A")
	assert.Equal(t, model.StatusScheduled, j.Status)
}

func TestCloneIsIndependent(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1"}}, "A", "B")
	c := b.Clone()
	_, _, err := c.Move("A", "v1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, b.Lane(model.Unassigned))
	assert.Equal(t, []string{"B"}, c.Lane(model.Unassigned))
	assert.NotEqual(t, b.Version(), c.Version())
}

func TestRandomCommandsPreserveInvariants(t *testing.T) {
	vehicles := []model.Vehicle{{ID: "v1", Capacity: 1}, {ID: "v2", Capacity: 3}, {ID: "v3"}}
	lanes := []string{model.Unassigned, "v1", "v2", "v3", "ghost"}
	jobs := []string{"J1", "J2", "J3", "J4", "J5", "J6"}
	b := newBoard(t, vehicles, jobs...)
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		before := b.Clone()
		job := jobs[r.Intn(len(jobs))]
		if r.Intn(8) == 0 {
			job = "nope"
		}
		var (
			changed bool
			err     error
		)
		switch r.Intn(3) {
		case 0:
			_, changed, err = b.Move(job, lanes[r.Intn(len(lanes))], r.Intn(8)-2)
		case 1:
			_, changed, err = b.Reorder(lanes[r.Intn(len(lanes))], job, r.Intn(8)-2)
		default:
			st := []model.Status{model.StatusScheduled, model.StatusInProgress, model.StatusCompleted}
			_, changed, err = b.SetStatus(job, st[r.Intn(len(st))])
		}
		require.NoError(t, b.CheckInvariants(), "step %d", i)
		switch {
		case err != nil:
			assert.Equal(t, before.View(), b.View(), "step %d rejected command mutated board", i)
		case changed:
			assert.Equal(t, before.Version()+1, b.Version(), "step %d", i)
		default:
			assert.Equal(t, before.View(), b.View(), "step %d", i)
		}
	}
}
