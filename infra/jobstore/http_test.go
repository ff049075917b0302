package jobstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kilianp07/fieldboard/auth"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestHTTPRegistry_JobsForDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("date"))
		_, _ = w.Write([]byte(`{"jobs":[
			{"id":"J2","project_ref":"P2","scheduled_time":"2024-06-01T10:00:00Z","priority":"urgent"},
			{"id":"J1","project_ref":"P1","scheduled_time":"2024-06-01T08:00:00Z","duration_hours":1.5},
			{"id":"X","project_ref":"P3","scheduled_time":"2024-06-02T08:00:00Z"}
		]}`))
	}))
	defer srv.Close()

	reg, err := NewHTTPRegistry(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	got, err := reg.JobsForDay(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "J1", got[0].ID)
	assert.Equal(t, 1.5, got[0].EstimatedDurationHours)
	assert.Equal(t, model.PriorityUrgent, got[1].Priority)
	assert.Equal(t, model.Unassigned, got[1].Placement.VehicleID)
}

func TestHTTPRegistry_UpdateStatusWithAuth(t *testing.T) {
	var tokens atomic.Int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			_, _ = w.Write([]byte(`{"access_token":"old","token_type":"bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"new","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/jobs/J%201", r.URL.EscapedPath())
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	reg, err := NewHTTPRegistry(Config{
		BaseURL: srv.URL,
		Auth:    auth.Conf{ClientID: "id", ClientSecret: "s", AuthURL: tokenSrv.URL},
	})
	require.NoError(t, err)
	require.NoError(t, reg.UpdateStatus(context.Background(), "J 1", model.StatusCompleted))
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, int32(2), tokens.Load())
}

func TestHTTPRegistry_Errors(t *testing.T) {
	_, err := NewHTTPRegistry(Config{})
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()
	reg, err := NewHTTPRegistry(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = reg.JobsForDay(context.Background(), day)
	assert.ErrorContains(t, err, "502")
}
