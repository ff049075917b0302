// Package jobs adapts the external job store. Registries return the jobs
// scheduled for a day as model.Job values and accept status updates.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fieldboard/core/model"
)

// ErrNotFound is returned when a status update targets an unknown job.
var ErrNotFound = errors.New("job not found")

// Registry is the read side of the job store plus status write-back.
type Registry interface {
	JobsForDay(ctx context.Context, day time.Time) ([]model.Job, error)
	UpdateStatus(ctx context.Context, jobID string, status model.Status) error
}

// Record is a raw job as stored by the job store.
type Record struct {
	ID            string    `json:"id" yaml:"id"`
	ProjectRef    string    `json:"project_ref" yaml:"project_ref"`
	Title         string    `json:"title,omitempty" yaml:"title"`
	Address       string    `json:"address,omitempty" yaml:"address"`
	Latitude      float64   `json:"latitude,omitempty" yaml:"latitude"`
	Longitude     float64   `json:"longitude,omitempty" yaml:"longitude"`
	ScheduledTime time.Time `json:"scheduled_time" yaml:"scheduled_time"`
	DurationHours float64   `json:"duration_hours" yaml:"duration_hours"`
	Priority      string    `json:"priority,omitempty" yaml:"priority"`
	Status        string    `json:"status,omitempty" yaml:"status"`
}

// ToJob translates the record. The job starts in the unassigned lane.
func (r Record) ToJob() (model.Job, error) {
	if r.ID == "" {
		return model.Job{}, fmt.Errorf("job record without id")
	}
	if r.ScheduledTime.IsZero() {
		return model.Job{}, fmt.Errorf("job %s: missing scheduled time", r.ID)
	}
	prio, err := model.ParsePriority(r.Priority)
	if err != nil {
		return model.Job{}, fmt.Errorf("job %s: %w", r.ID, err)
	}
	st, err := model.ParseStatus(r.Status)
	if err != nil {
		return model.Job{}, fmt.Errorf("job %s: %w", r.ID, err)
	}
	return model.Job{
		ID:                     r.ID,
		ProjectRef:             r.ProjectRef,
		Title:                  r.Title,
		Location:               model.Location{Address: r.Address, Latitude: r.Latitude, Longitude: r.Longitude},
		ScheduledTime:          r.ScheduledTime,
		EstimatedDurationHours: r.DurationHours,
		Priority:               prio,
		Status:                 st,
		Placement:              model.Placement{VehicleID: model.Unassigned},
	}, nil
}

// ForDay translates the records scheduled on day, sorted by scheduled time
// then id.
func ForDay(records []Record, day time.Time) ([]model.Job, error) {
	out := make([]model.Job, 0, len(records))
	for _, r := range records {
		if !model.SameDay(r.ScheduledTime, day) {
			continue
		}
		j, err := r.ToJob()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	SortBySchedule(out)
	return out, nil
}

// SortBySchedule orders jobs by scheduled time, ties broken by id.
func SortBySchedule(js []model.Job) {
	sort.SliceStable(js, func(i, k int) bool {
		if !js[i].ScheduledTime.Equal(js[k].ScheduledTime) {
			return js[i].ScheduledTime.Before(js[k].ScheduledTime)
		}
		return js[i].ID < js[k].ID
	})
}

// MemoryRegistry keeps records in memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryRegistry returns a registry seeded with records.
func NewMemoryRegistry(records ...Record) *MemoryRegistry {
	m := &MemoryRegistry{records: make(map[string]Record, len(records))}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

// Put inserts or replaces a record.
func (m *MemoryRegistry) Put(r Record) {
	m.mu.Lock()
	m.records[r.ID] = r
	m.mu.Unlock()
}

// Get returns the stored record.
func (m *MemoryRegistry) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok
}

func (m *MemoryRegistry) JobsForDay(ctx context.Context, day time.Time) ([]model.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.RUnlock()
	return ForDay(records, day)
}

func (m *MemoryRegistry) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	r.Status = string(status)
	m.records[jobID] = r
	return nil
}
