// Package boardstore persists the lane layout and job statuses of a day.
package boardstore

import (
	"context"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
)

// LaneRecord is the ordered membership of one lane.
type LaneRecord struct {
	VehicleID string   `json:"vehicle_id"`
	JobIDs    []string `json:"job_ids"`
}

// JobStatusRecord is the persisted status of a job.
type JobStatusRecord struct {
	JobID  string       `json:"job_id"`
	Status model.Status `json:"status"`
}

// State is the full persisted state of one day's board. Saves always carry
// the complete state.
type State struct {
	Date     string            `json:"date"`
	Version  uint64            `json:"version"`
	Lanes    []LaneRecord      `json:"lanes"`
	Statuses []JobStatusRecord `json:"statuses"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Placement returns the lane and position of every persisted job.
func (s State) Placement() map[string]model.Placement {
	out := make(map[string]model.Placement)
	for _, l := range s.Lanes {
		for i, id := range l.JobIDs {
			out[id] = model.Placement{VehicleID: l.VehicleID, Position: i}
		}
	}
	return out
}

// StatusOf returns the persisted status of every job.
func (s State) StatusOf() map[string]model.Status {
	out := make(map[string]model.Status, len(s.Statuses))
	for _, r := range s.Statuses {
		out[r.JobID] = r.Status
	}
	return out
}

// Store loads and saves board state by day key.
type Store interface {
	// Load returns found=false when nothing was persisted for day.
	Load(ctx context.Context, day string) (State, bool, error)
	Save(ctx context.Context, st State) error
	Close() error
}
