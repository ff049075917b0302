package board

import (
	"time"

	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/model"
)

// JobSummary is the read-only projection of a job shown in a lane.
type JobSummary struct {
	ID                     string             `json:"id"`
	ProjectRef             string             `json:"project_ref"`
	Title                  string             `json:"title,omitempty"`
	Address                string             `json:"address,omitempty"`
	ScheduledTime          time.Time          `json:"scheduled_time"`
	EstimatedDurationHours float64            `json:"estimated_duration_hours"`
	Priority               model.Priority     `json:"priority"`
	Status                 model.Status       `json:"status"`
	Position               int                `json:"position"`
	Actions                []lifecycle.Action `json:"actions"`
}

// LaneView is one lane of a snapshot.
type LaneView struct {
	VehicleID string         `json:"vehicle_id"`
	Name      string         `json:"name,omitempty"`
	Capacity  model.Capacity `json:"capacity"`
	// Fill is len(jobs)/capacity, zero for unlimited lanes.
	Fill float64      `json:"fill"`
	Jobs []JobSummary `json:"jobs"`
}

// View is a detached snapshot of a board.
type View struct {
	Date                string     `json:"date"`
	Version             uint64     `json:"version"`
	PersistenceDegraded bool       `json:"persistence_degraded"`
	UndoAvailable       bool       `json:"undo_available"`
	Lanes               []LaneView `json:"lanes"`
}

// Lane returns the lane view for vehicleID.
func (v View) Lane(vehicleID string) (LaneView, bool) {
	for _, l := range v.Lanes {
		if l.VehicleID == vehicleID {
			return l, true
		}
	}
	return LaneView{}, false
}

// JobIDs returns the ordering of the lane.
func (l LaneView) JobIDs() []string {
	ids := make([]string, len(l.Jobs))
	for i, j := range l.Jobs {
		ids[i] = j.ID
	}
	return ids
}

// View projects the board. It has no side effects.
func (b *Board) View() View {
	v := View{
		Date:    b.DateKey(),
		Version: b.version,
		Lanes:   make([]LaneView, 0, len(b.order)),
	}
	for _, id := range b.order {
		l := b.lanes[id]
		lv := LaneView{
			VehicleID: id,
			Name:      l.vehicle.Name,
			Capacity:  l.vehicle.Capacity,
			Jobs:      make([]JobSummary, 0, len(l.jobs)),
		}
		if id == model.Unassigned {
			lv.Capacity = model.Unlimited
		}
		if !lv.Capacity.IsUnlimited() {
			lv.Fill = float64(len(l.jobs)) / float64(lv.Capacity)
		}
		for i, jid := range l.jobs {
			j := b.jobs[jid]
			lv.Jobs = append(lv.Jobs, JobSummary{
				ID:                     j.ID,
				ProjectRef:             j.ProjectRef,
				Title:                  j.Title,
				Address:                j.Location.Address,
				ScheduledTime:          j.ScheduledTime,
				EstimatedDurationHours: j.EstimatedDurationHours,
				Priority:               j.Priority,
				Status:                 j.Status,
				Position:               i,
				Actions:                lifecycle.Actions(j.Status),
			})
		}
		v.Lanes = append(v.Lanes, lv)
	}
	return v
}
