package logging

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAppendsBoardChanges(t *testing.T) {
	store, err := NewSQLiteStore("file:recorder.db?mode=memory&cache=shared")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartRecorder(ctx, bus, store, nil)

	diff := board.Diff{
		JobID: "J1",
		From:  model.Placement{VehicleID: model.Unassigned},
		To:    model.Placement{VehicleID: "V1"},
	}
	bus.Publish(events.CommandHandled{Command: "assign"})
	bus.Publish(events.NewBoardChanged("assign", diff, board.View{Date: "2024-06-01", Version: 3}))

	require.Eventually(t, func() bool {
		out, err := store.Query(context.Background(), LogQuery{JobID: "J1"})
		return err == nil && len(out) == 1
	}, time.Second, 10*time.Millisecond)

	out, _ := store.Query(context.Background(), LogQuery{JobID: "J1"})
	assert.Equal(t, uint64(3), out[0].Version)
	assert.Equal(t, "V1", out[0].To.VehicleID)
	assert.NotEmpty(t, out[0].EventID)

	cancel()
	<-done
	bus.Close()
}

func TestRecorderStopsOnBusClose(t *testing.T) {
	bus := eventbus.New()
	store, err := NewJSONLStore(t.TempDir() + "/j.jsonl")
	require.NoError(t, err)
	done := StartRecorder(context.Background(), bus, store, nil)
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
