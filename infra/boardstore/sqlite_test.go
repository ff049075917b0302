package boardstore

import (
	"context"
	"testing"
	"time"

	core "github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(version uint64) core.State {
	return core.State{
		Date:    "2024-06-01",
		Version: version,
		Lanes: []core.LaneRecord{
			{VehicleID: model.Unassigned, JobIDs: []string{"J3"}},
			{VehicleID: "V1", JobIDs: []string{"J1", "J2"}},
		},
		Statuses: []core.JobStatusRecord{{JobID: "J1", Status: model.StatusInProgress}},
		SavedAt:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_SaveLoad(t *testing.T) {
	store, err := NewSQLiteStore("file:boards.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	_, found, err := store.Load(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, sampleState(3)))
	st, found, err := store.Load(ctx, "2024-06-01")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sampleState(3), st)

	days, err := store.Days(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-01"}, days)
}

func TestSQLiteStore_OlderVersionIgnored(t *testing.T) {
	store, err := NewSQLiteStore("file:boards_older.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, sampleState(5)))
	older := sampleState(4)
	older.Lanes = nil
	require.NoError(t, store.Save(ctx, older))

	st, _, err := store.Load(ctx, "2024-06-01")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), st.Version)
	assert.Len(t, st.Lanes, 2)
}
