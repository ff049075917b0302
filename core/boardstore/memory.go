package boardstore

import (
	"context"
	"sync"
)

// MemoryStore keeps state in a map. It is used by tests and when no durable
// store is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
	saves  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(ctx context.Context, day string) (State, bool, error) {
	if err := ctx.Err(); err != nil {
		return State{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[day]
	return clone(st), ok, nil
}

func (m *MemoryStore) Save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.states[st.Date] = clone(st)
	m.saves++
	m.mu.Unlock()
	return nil
}

// Saves returns how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MemoryStore) Close() error { return nil }

func clone(st State) State {
	out := st
	out.Lanes = make([]LaneRecord, len(st.Lanes))
	for i, l := range st.Lanes {
		out.Lanes[i] = LaneRecord{VehicleID: l.VehicleID, JobIDs: append([]string(nil), l.JobIDs...)}
	}
	out.Statuses = append([]JobStatusRecord(nil), st.Statuses...)
	return out
}
