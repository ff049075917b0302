package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/fleet"
	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/lifecycle"
	"github.com/kilianp07/fieldboard/core/logger"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/internal/eventbus"
	"golang.org/x/sync/singleflight"
)

// ErrClosed is returned by a Manager after Close.
var ErrClosed = errors.New("board manager closed")

type boardEntry struct {
	engine  *Engine
	persist *persister
}

// Manager owns one Engine per day. Boards are built on first use from the
// job registry, the vehicle catalog and the persisted layout.
type Manager struct {
	cfg      Config
	registry jobs.Registry
	catalog  fleet.Catalog
	store    boardstore.Store
	log      logger.Logger
	bus      eventbus.EventBus

	mu     sync.RWMutex
	boards map[string]*boardEntry
	closed bool
	group  singleflight.Group
}

// NewManager validates its collaborators. bus may be nil.
func NewManager(cfg Config, reg jobs.Registry, cat fleet.Catalog, store boardstore.Store, log logger.Logger, bus eventbus.EventBus) (*Manager, error) {
	if reg == nil || cat == nil || store == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg,
		registry: reg,
		catalog:  cat,
		store:    store,
		log:      logger.OrNop(log),
		bus:      bus,
		boards:   make(map[string]*boardEntry),
	}, nil
}

// Get returns the engine of an already loaded day.
func (m *Manager) Get(day string) (*Engine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	be, ok := m.boards[day]
	if !ok {
		return nil, false
	}
	return be.engine, true
}

// Days lists the loaded day keys in order.
func (m *Manager) Days() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.boards))
	for d := range m.boards {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Load returns the engine for day, building the board if needed. Concurrent
// loads of the same day share one build. Any failure yields a
// *board.LoadError and no board is kept.
func (m *Manager) Load(ctx context.Context, day time.Time) (*Engine, error) {
	key := model.DayKey(day)
	if e, ok := m.Get(key); ok {
		return e, nil
	}
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if e, ok := m.Get(key); ok {
			return e, nil
		}
		be, err := m.build(ctx, model.Day(day))
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			be.engine.close()
			_ = be.persist.close(context.Background())
			return nil, ErrClosed
		}
		m.boards[key] = be
		boardsLoaded.Set(float64(len(m.boards)))
		return be.engine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

func (m *Manager) build(parent context.Context, day time.Time) (*boardEntry, error) {
	key := model.DayKey(day)
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, m.cfg.loadTimeout())
	defer cancel()
	fail := func(stage string, err error) (*boardEntry, error) {
		m.log.Errorf("load board %s: %s: %v", key, stage, err)
		return nil, &board.LoadError{Date: key, Err: fmt.Errorf("%s: %w", stage, err)}
	}

	vehicles, err := m.catalog.Vehicles(ctx, day)
	if err != nil {
		return fail("vehicle catalog", err)
	}
	dayJobs, err := m.registry.JobsForDay(ctx, day)
	if err != nil {
		return fail("job registry", err)
	}
	st, found, err := m.store.Load(ctx, key)
	if err != nil {
		return fail("board store", err)
	}
	if err := ctx.Err(); err != nil {
		return fail("deadline", err)
	}
	b, err := board.New(day, vehicles)
	if err != nil {
		return fail("vehicle catalog", err)
	}

	spilled, repaired, err := m.populate(b, dayJobs, st, found)
	if err != nil {
		return fail("populate", err)
	}
	if found {
		b.RestoreVersion(st.Version)
	}

	e := NewEngine(b, WithLogger(m.log), WithBus(m.bus), WithUndoDepth(m.cfg.UndoDepth))
	p := newPersister(e, m.store, m.registry, m.cfg.retry(), m.log, m.bus)
	e.persist = p
	p.start()
	if repaired {
		p.markDirty()
	}

	m.log.Infof("board %s loaded: %d jobs, %d vehicles, version %d", key, len(dayJobs), len(vehicles), b.Version())
	if m.bus != nil {
		m.bus.Publish(events.BoardLoaded{Date: key, Version: b.Version(), Jobs: len(dayJobs), Spilled: spilled, Duration: time.Since(start)})
	}
	return &boardEntry{engine: e, persist: p}, nil
}

// populate places the registry's jobs: persisted lanes first in their saved
// order, then spilled and new jobs into the unassigned lane. It reports
// whether the persisted layout had to be repaired.
func (m *Manager) populate(b *board.Board, dayJobs []model.Job, st boardstore.State, found bool) (int, bool, error) {
	byID := make(map[string]model.Job, len(dayJobs))
	for _, j := range dayJobs {
		byID[j.ID] = j
	}
	placed := make(map[string]bool, len(dayJobs))
	repaired := false
	var spill []model.Job

	if found {
		statuses := st.StatusOf()
		for _, lane := range st.Lanes {
			if !b.HasLane(lane.VehicleID) {
				m.log.Warnf("board %s: persisted lane %s is not in the catalog, its jobs go to unassigned", b.DateKey(), lane.VehicleID)
				repaired = true
			}
			for _, id := range lane.JobIDs {
				j, ok := byID[id]
				if !ok || placed[id] {
					repaired = true
					continue
				}
				if s, ok := statuses[id]; ok {
					merged := lifecycle.Later(j.Status, s)
					if merged != j.Status {
						repaired = true
					}
					j.Status = merged
					byID[id] = j
				}
				placed[id] = true
				if !b.HasLane(lane.VehicleID) {
					spill = append(spill, j)
					continue
				}
				if err := b.Place(j, lane.VehicleID); err != nil {
					if !errors.Is(err, board.ErrCapacityExceeded) {
						return 0, false, err
					}
					m.log.Warnf("board %s: job %s overflows %s, moved to unassigned", b.DateKey(), id, lane.VehicleID)
					spill = append(spill, j)
				}
			}
		}
	}
	for _, j := range spill {
		if err := b.Place(j, model.Unassigned); err != nil {
			return 0, false, err
		}
	}
	fresh := 0
	for _, j := range dayJobs {
		if placed[j.ID] {
			continue
		}
		if err := b.Place(byID[j.ID], model.Unassigned); err != nil {
			return 0, false, err
		}
		fresh++
	}
	if found && fresh > 0 {
		repaired = true
	}
	if len(spill) > 0 {
		repaired = true
	}
	return len(spill), repaired, nil
}

// Flush waits until the pending save of day completed.
func (m *Manager) Flush(ctx context.Context, day string) error {
	m.mu.RLock()
	be, ok := m.boards[day]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return be.persist.flush(ctx)
}

// Evict flushes and drops a day's board. Callers still holding its Engine
// get ErrClosed. The next access reloads it.
func (m *Manager) Evict(ctx context.Context, day string) error {
	m.mu.Lock()
	be, ok := m.boards[day]
	delete(m.boards, day)
	boardsLoaded.Set(float64(len(m.boards)))
	m.mu.Unlock()
	if !ok {
		return nil
	}
	// The engine stops taking commands before the final save.
	be.engine.close()
	err := be.persist.close(ctx)
	m.log.Infof("board %s evicted at version %d", day, be.engine.Version())
	return err
}

// Close evicts every board. Further loads fail with ErrClosed.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	days := make([]string, 0, len(m.boards))
	for d := range m.boards {
		days = append(days, d)
	}
	m.mu.Unlock()
	var errs []error
	for _, d := range days {
		if err := m.Evict(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("evict %s: %w", d, err))
		}
	}
	return errors.Join(errs...)
}
