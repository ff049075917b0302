package board

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreboard "github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/fleet"
	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/model"
)

const day = "2024-06-01"

func init() { gin.SetMode(gin.TestMode) }

func newManager(t *testing.T, reg jobs.Registry) *dispatch.Manager {
	t.Helper()
	if reg == nil {
		at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
		reg = jobs.NewMemoryRegistry(
			jobs.Record{ID: "J1", ProjectRef: "P1", ScheduledTime: at},
			jobs.Record{ID: "J2", ProjectRef: "P2", ScheduledTime: at.Add(time.Hour)},
			jobs.Record{ID: "J3", ProjectRef: "P3", ScheduledTime: at.Add(2 * time.Hour)},
		)
	}
	cat := fleet.StaticCatalog{{ID: "V1", Capacity: 1}, {ID: "V2"}}
	m, err := dispatch.NewManager(dispatch.Config{SaveBackoffMS: 1, SaveMaxBackoffMS: 2}, reg, cat, boardstore.NewMemoryStore(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHealthAndAuth(t *testing.T) {
	h := NewRouter(newManager(t, nil), Options{Token: "tok"})

	rr := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/boards/"+day, nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(t, h, http.MethodGet, "/api/boards/"+day, nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/boards/"+day, nil, "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var v coreboard.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	assert.Equal(t, day, v.Date)
	un, ok := v.Lane(model.Unassigned)
	require.True(t, ok)
	assert.Equal(t, []string{"J1", "J2", "J3"}, un.JobIDs())
}

func TestCommandFlow(t *testing.T) {
	h := NewRouter(newManager(t, nil), Options{})
	path := "/api/boards/" + day

	rr := do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J1", "vehicle_id": "V1"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res dispatch.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, uint64(1), res.Version)
	assert.True(t, res.Changed)

	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J2", "vehicle_id": "V1", "expected_version": 0}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, coreboard.CodeStaleVersion, body["code"])
	assert.EqualValues(t, 1, body["board"].(map[string]any)["version"])

	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J2", "vehicle_id": "V1", "expected_version": 1}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, coreboard.CodeCapacityExceeded, decode(t, rr)["code"])

	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "nope", "vehicle_id": "V1", "expected_version": 1}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J1", "vehicle_id": model.Unassigned, "expected_version": 1}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, path+"/undo", gin.H{"expected_version": 2}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	l, _ := res.Board.Lane("V1")
	assert.Equal(t, []string{"J1"}, l.JobIDs())

	rr = do(t, h, http.MethodPost, path+"/undo", gin.H{"expected_version": 3}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, coreboard.CodeNothingToUndo, decode(t, rr)["code"])

	rr = do(t, h, http.MethodPost, path+"/status", gin.H{"job_id": "J1", "new_status": "in_progress", "expected_version": 3}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPost, path+"/status", gin.H{"job_id": "J1", "new_status": "scheduled", "expected_version": 4}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J2", "vehicle_id": "V2", "expected_version": 4}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPost, path+"/assign", gin.H{"job_id": "J3", "vehicle_id": "V2", "position": 0, "expected_version": 5}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, h, http.MethodPost, path+"/reorder", gin.H{"job_id": "J2", "vehicle_id": "V2", "position": 0, "expected_version": 6}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	l, _ = res.Board.Lane("V2")
	assert.Equal(t, []string{"J2", "J3"}, l.JobIDs())
}

func TestBadRequests(t *testing.T) {
	h := NewRouter(newManager(t, nil), Options{})

	rr := do(t, h, http.MethodPost, "/api/boards/"+day+"/assign", gin.H{"vehicle_id": "V1"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/api/boards/"+day+"/status", gin.H{"job_id": "J1"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, h, http.MethodPost, "/api/boards/"+day+"/status", gin.H{"job_id": "J1", "new_status": "completed", "action": "complete"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/boards/tomorrow", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_command", decode(t, rr)["code"])

	rr = do(t, h, http.MethodGet, "/api/boards/"+day+"/export?format=xml", nil, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusActions(t *testing.T) {
	h := NewRouter(newManager(t, nil), Options{})
	path := "/api/boards/" + day + "/status"

	rr := do(t, h, http.MethodPost, path, gin.H{"job_id": "J2", "action": "complete"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, coreboard.CodeIllegalTransition, decode(t, rr)["code"])

	rr = do(t, h, http.MethodPost, path, gin.H{"job_id": "J2", "action": "start"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = do(t, h, http.MethodPost, path, gin.H{"job_id": "J2", "action": "complete", "expected_version": 1}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res dispatch.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, uint64(2), res.Version)

	rr = do(t, h, http.MethodPost, path, gin.H{"job_id": "J2", "action": "pause", "expected_version": 2}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

type downRegistry struct{}

func (downRegistry) JobsForDay(context.Context, time.Time) ([]model.Job, error) {
	return nil, errors.New("connection refused")
}
func (downRegistry) UpdateStatus(context.Context, string, model.Status) error { return nil }

func TestLoadErrorIsUnavailable(t *testing.T) {
	h := NewRouter(newManager(t, downRegistry{}), Options{})
	rr := do(t, h, http.MethodGet, "/api/boards/"+day, nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, coreboard.CodeLoadError, decode(t, rr)["code"])
}

func TestExportCSV(t *testing.T) {
	h := NewRouter(newManager(t, nil), Options{})
	rr := do(t, h, http.MethodGet, "/api/boards/"+day+"/export?format=csv", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	assert.Len(t, lines, 4)
}

func TestStreamEvents(t *testing.T) {
	m := newManager(t, nil)
	srv := httptest.NewServer(NewRouter(m, Options{Heartbeat: time.Hour}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/boards/"+day+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	next := func(event string) string {
		t.Helper()
		for sc.Scan() {
			if sc.Text() != "event:"+event {
				continue
			}
			require.True(t, sc.Scan())
			return strings.TrimPrefix(sc.Text(), "data:")
		}
		t.Fatalf("stream ended before %s event: %v", event, sc.Err())
		return ""
	}
	assert.Contains(t, next("board"), fmt.Sprintf(`"date":"%s"`, day))

	_, err = m.Assign(ctx, dispatch.AssignJob{Date: day, JobID: "J2", VehicleID: "V2"})
	require.NoError(t, err)
	data := next("changed")
	assert.Contains(t, data, `"command":"assign"`)
	assert.Contains(t, data, `"version":1`)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", dispatch.ErrInvalidCommand), http.StatusBadRequest},
		{coreboard.ErrStaleVersion, http.StatusConflict},
		{coreboard.ErrUnknownVehicle, http.StatusNotFound},
		{coreboard.ErrIllegalTransition, http.StatusUnprocessableEntity},
		{&coreboard.LoadError{Date: day, Err: errors.New("x")}, http.StatusServiceUnavailable},
		{dispatch.ErrClosed, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusOf(c.err), c.err.Error())
	}
}
