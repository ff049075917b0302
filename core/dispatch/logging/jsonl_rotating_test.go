package logging

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldboard/core/model"
)

func TestRotatingJSONLStoreRotatesAndQueriesBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "board.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	pad := strings.Repeat("x", 300)
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	const n = 3500
	for i := 0; i < n; i++ {
		rec := LogRecord{
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Date:      "2024-06-01",
			Version:   uint64(i + 1),
			Command:   "assign",
			JobID:     fmt.Sprintf("J%d-%s", i, pad),
			To:        model.Placement{VehicleID: "V1"},
		}
		require.NoError(t, store.Append(ctx, rec))
	}

	backups, err := filepath.Glob(filepath.Join(filepath.Dir(path), "board-*.jsonl"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	all, err := store.Query(ctx, LogQuery{Date: "2024-06-01"})
	require.NoError(t, err)
	require.Len(t, all, n)
	assert.Equal(t, uint64(1), all[0].Version)
	assert.Equal(t, uint64(n), all[n-1].Version)

	last, err := store.Query(ctx, LogQuery{Start: start.Add((n - 1) * time.Second)})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, uint64(n), last[0].Version)
}

func TestRotatingJSONLStoreCancelledAppend(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "board.jsonl"), 1, 1, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Append(ctx, LogRecord{Date: "2024-06-01"}), context.Canceled)

	out, err := store.Query(context.Background(), LogQuery{})
	require.NoError(t, err)
	assert.Empty(t, out)
}
