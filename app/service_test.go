package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldboard/config"
	"github.com/kilianp07/fieldboard/core/dispatch/logging"
)

const jobsFixture = `jobs:
  - id: J1
    project_ref: P1
    scheduled_time: 2024-06-01T08:00:00Z
  - id: J2
    project_ref: P2
    scheduled_time: 2024-06-01T09:00:00Z
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	jobsPath := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(jobsPath, []byte(jobsFixture), 0o644))
	cfg := &config.Config{
		Fleet:    config.FleetConfig{Vehicles: []config.VehicleConfig{{ID: "V1", Capacity: 1}, {ID: "V2"}}},
		JobStore: config.JobStoreConfig{Backend: "file", Path: jobsPath},
		Store:    config.StoreConfig{Backend: "sqlite", Path: filepath.Join(dir, "boards.db")},
		Journal:  config.JournalConfig{Backend: "jsonl", Path: filepath.Join(dir, "journal.jsonl")},
	}
	cfg.Engine.SaveBackoffMS = 1
	cfg.Engine.SaveMaxBackoffMS = 2
	require.NoError(t, cfg.Prepare())
	return cfg
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServiceEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	svc.Start(context.Background())

	h := svc.Handler()
	rr := post(t, h, "/api/boards/2024-06-01/assign", map[string]any{"job_id": "J1", "vehicle_id": "V1"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = post(t, h, "/api/boards/2024-06-01/assign", map[string]any{"job_id": "J2", "vehicle_id": "V1", "expected_version": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	require.NoError(t, svc.Close())

	journal, err := logging.NewJSONLStore(cfg.Journal.Path)
	require.NoError(t, err)
	recs, err := journal.Query(context.Background(), logging.LogQuery{JobID: "J1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "V1", recs[0].To.VehicleID)

	// the layout survives a restart through the sqlite store
	svc2, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc2.Close() }()
	req := httptest.NewRequest(http.MethodGet, "/api/boards/2024-06-01", nil)
	rr = httptest.NewRecorder()
	svc2.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var v struct {
		Version uint64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, uint64(1), v.Version)
}

func TestServiceJournalRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.API.Token = "tok"
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/journal?date=2024-06-01", nil)
	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "[]", rr.Body.String())
}

func TestFactoriesRejectUnknownBackends(t *testing.T) {
	_, err := NewRegistry(config.JobStoreConfig{Backend: "ftp"})
	assert.Error(t, err)
	_, err = NewBoardStore(config.StoreConfig{Backend: "redis"})
	assert.Error(t, err)
	_, err = NewJournal(config.JournalConfig{Backend: "kafka"})
	assert.Error(t, err)
	j, err := NewJournal(config.JournalConfig{Backend: "none"})
	assert.NoError(t, err)
	assert.Nil(t, j)
}
