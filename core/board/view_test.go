package board

import (
	"testing"

	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewProjection(t *testing.T) {
	b := newBoard(t, []model.Vehicle{{ID: "v1", Name: "Van 1", Capacity: 2}, {ID: "v2"}}, "A", "B")
	_, _, err := b.Move("B", "v1", 0)
	require.NoError(t, err)
	_, _, err = b.SetStatus("B", model.StatusInProgress)
	require.NoError(t, err)

	v := b.View()
	assert.Equal(t, "2024-06-01", v.Date)
	assert.Equal(t, uint64(2), v.Version)
	require.Len(t, v.Lanes, 3)
	assert.Equal(t, model.Unassigned, v.Lanes[0].VehicleID)
	assert.Equal(t, []string{"v1", "v2"}, []string{v.Lanes[1].VehicleID, v.Lanes[2].VehicleID})

	v1, ok := v.Lane("v1")
	require.True(t, ok)
	assert.Equal(t, 0.5, v1.Fill)
	assert.Equal(t, []string{"B"}, v1.JobIDs())
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionComplete}, v1.Jobs[0].Actions)

	un, _ := v.Lane(model.Unassigned)
	assert.Equal(t, model.Unlimited, un.Capacity)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionStart}, un.Jobs[0].Actions)

	v.Lanes[0].Jobs[0].ID = "mutated"
	assert.Equal(t, []string{"A"}, b.Lane(model.Unassigned))
}

func TestUtilize(t *testing.T) {
	v := View{Lanes: []LaneView{
		{VehicleID: model.Unassigned, Jobs: make([]JobSummary, 3)},
		{VehicleID: "v1", Capacity: 2, Fill: 1, Jobs: make([]JobSummary, 2)},
		{VehicleID: "v2", Capacity: 4, Fill: 0.5, Jobs: make([]JobSummary, 2)},
		{VehicleID: "v3", Jobs: make([]JobSummary, 1)},
	}}
	u := Utilize(v)
	assert.Equal(t, 2, u.Lanes)
	assert.Equal(t, 3, u.Unassigned)
	assert.Equal(t, 5, u.Assigned)
	assert.InDelta(t, 0.75, u.MeanFill, 1e-9)
	assert.InDelta(t, 0.3535, u.StdDevFill, 1e-3)

	single := Utilize(View{Lanes: []LaneView{{VehicleID: "v1", Capacity: 2, Fill: 0.5}}})
	assert.Equal(t, 0.5, single.MeanFill)
	assert.Zero(t, single.StdDevFill)
}
