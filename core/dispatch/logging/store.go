package logging

import (
	"context"
	"time"

	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/model"
)

// LogRecord captures one applied board command.
type LogRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	EventID    string          `json:"event_id"`
	Date       string          `json:"date"`
	Version    uint64          `json:"version"`
	Command    string          `json:"command"`
	JobID      string          `json:"job_id"`
	From       model.Placement `json:"from"`
	To         model.Placement `json:"to"`
	FromStatus model.Status    `json:"from_status,omitempty"`
	ToStatus   model.Status    `json:"to_status,omitempty"`
}

// RecordFrom converts a change event into a journal record.
func RecordFrom(ev events.BoardChanged) LogRecord {
	return LogRecord{
		Timestamp:  ev.Time,
		EventID:    ev.ID,
		Date:       ev.Date,
		Version:    ev.Version,
		Command:    ev.Command,
		JobID:      ev.Diff.JobID,
		From:       ev.Diff.From,
		To:         ev.Diff.To,
		FromStatus: ev.Diff.FromStatus,
		ToStatus:   ev.Diff.ToStatus,
	}
}

// LogQuery defines filters for retrieving records. Zero fields match
// everything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	Date      string
	JobID     string
	VehicleID string
}

// Match reports whether r satisfies every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Date != "" && r.Date != q.Date {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	if q.VehicleID != "" && r.From.VehicleID != q.VehicleID && r.To.VehicleID != q.VehicleID {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}
