package model

import (
	"fmt"
	"time"
)

// Priority is a display and sort hint attached to a job. It never affects
// lane ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority converts a raw priority string. An empty string maps to
// PriorityMedium.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s), nil
	case "":
		return PriorityMedium, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Rank orders priorities from low (0) to urgent (3).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityHigh:
		return 2
	case PriorityUrgent:
		return 3
	default:
		return 1
	}
}

// Status is the lifecycle state of a job.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus converts a raw status string. An empty string maps to
// StatusScheduled.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusScheduled, StatusInProgress, StatusCompleted:
		return Status(s), nil
	case "":
		return StatusScheduled, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Step returns the position of the status in the lifecycle, or -1 when the
// status is unknown.
func (s Status) Step() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusInProgress:
		return 1
	case StatusCompleted:
		return 2
	default:
		return -1
	}
}

// Location is opaque to the engine and only carried for display.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Placement locates a job inside the board: the lane it belongs to and its
// index in that lane.
type Placement struct {
	VehicleID string `json:"vehicle_id"`
	Position  int    `json:"position"`
}

// Assigned reports whether the placement is on a named vehicle lane.
func (p Placement) Assigned() bool { return p.VehicleID != "" && p.VehicleID != Unassigned }

func (p Placement) String() string {
	return fmt.Sprintf("%s#%d", p.VehicleID, p.Position)
}

// Job is a field-service job scheduled for one day.
type Job struct {
	ID                     string    `json:"id"`
	ProjectRef             string    `json:"project_ref"`
	Title                  string    `json:"title,omitempty"`
	Location               Location  `json:"location"`
	ScheduledTime          time.Time `json:"scheduled_time"`
	EstimatedDurationHours float64   `json:"estimated_duration_hours"`
	Priority               Priority  `json:"priority"`
	Status                 Status    `json:"status"`
	// Placement is kept in lockstep with the owning lane by the board.
	Placement Placement `json:"placement"`
}
