// Package journal serves the board change journal over HTTP.
package journal

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kilianp07/fieldboard/core/dispatch/logging"
	"github.com/kilianp07/fieldboard/core/model"
)

// NewHandler returns an HTTP handler exposing journal records via
// GET /api/journal?date=&job_id=&vehicle_id=&start=&end=. start and end are
// RFC 3339 timestamps. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.LogRecord{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (logging.LogQuery, error) {
	v := r.URL.Query()
	q := logging.LogQuery{
		JobID:     v.Get("job_id"),
		VehicleID: v.Get("vehicle_id"),
	}
	if s := v.Get("date"); s != "" {
		if _, err := model.ParseDay(s); err != nil {
			return q, err
		}
		q.Date = s
	}
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		s := v.Get(f.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		*f.dst = t
	}
	return q, nil
}
