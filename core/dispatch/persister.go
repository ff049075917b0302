package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/jobs"
	"github.com/kilianp07/fieldboard/core/logger"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/core/monitoring"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// persister saves one engine's board in the background. Requests coalesce:
// every save writes the full current state, so a burst of commands produces
// at most one pending save.
type persister struct {
	engine   *Engine
	store    boardstore.Store
	registry jobs.Registry
	policy   retryPolicy
	log      logger.Logger
	bus      eventbus.EventBus

	mu       sync.Mutex
	dirty    bool
	statuses map[string]model.Status
	failures int
	retry    *time.Timer
	stopped  bool

	wake    chan struct{}
	flushes chan chan error
	quit    chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func newPersister(e *Engine, store boardstore.Store, reg jobs.Registry, p retryPolicy, log logger.Logger, bus eventbus.EventBus) *persister {
	ctx, cancel := context.WithCancel(context.Background())
	return &persister{
		engine:   e,
		store:    store,
		registry: reg,
		policy:   p,
		log:      logger.OrNop(log),
		bus:      bus,
		statuses: make(map[string]model.Status),
		wake:     make(chan struct{}, 1),
		flushes:  make(chan chan error),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (p *persister) start() { go p.run() }

func (p *persister) markDirty() {
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
	p.signal()
}

func (p *persister) markStatus(jobID string, status model.Status) {
	p.mu.Lock()
	p.statuses[jobID] = status
	p.mu.Unlock()
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// flush performs any pending work and waits for it.
func (p *persister) flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case p.flushes <- reply:
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scheduleRetry wakes the loop again after a failed sync, backing off with
// the number of consecutive failures.
func (p *persister) scheduleRetry() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	if p.stopped || p.retry != nil {
		return
	}
	delay := backoffDelay(p.policy, min(p.failures-1, 16))
	p.retry = time.AfterFunc(delay, func() {
		p.mu.Lock()
		p.retry = nil
		p.mu.Unlock()
		p.signal()
	})
}

func (p *persister) stopRetry() {
	p.mu.Lock()
	p.stopped = true
	if p.retry != nil {
		p.retry.Stop()
		p.retry = nil
	}
	p.mu.Unlock()
}

// close flushes and stops the loop. In-flight retries are abandoned when
// ctx expires.
func (p *persister) close(ctx context.Context) error {
	err := p.flush(ctx)
	p.stopRetry()
	p.cancel()
	select {
	case <-p.done:
	default:
		close(p.quit)
		<-p.done
	}
	return err
}

func (p *persister) run() {
	defer close(p.done)
	defer monitoring.Recover()
	for {
		select {
		case <-p.wake:
			_ = p.sync()
		case reply := <-p.flushes:
			reply <- p.sync()
		case <-p.quit:
			return
		}
	}
}

// sync saves the board when dirty, then pushes pending status changes to
// the job store. Failed work stays pending and is retried without waiting
// for another command.
func (p *persister) sync() error {
	p.mu.Lock()
	dirty := p.dirty
	p.dirty = false
	statuses := p.statuses
	p.statuses = make(map[string]model.Status)
	p.mu.Unlock()

	var firstErr error
	if dirty {
		if err := p.save(); err != nil {
			firstErr = err
			p.mu.Lock()
			p.dirty = true
			p.mu.Unlock()
		}
	}
	if len(statuses) > 0 && p.registry != nil {
		if err := p.pushStatuses(statuses); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		p.scheduleRetry()
	} else if dirty || len(statuses) > 0 {
		p.mu.Lock()
		p.failures = 0
		p.mu.Unlock()
	}
	return firstErr
}

func (p *persister) save() error {
	st := p.engine.State()
	attempts, err := retryOp(p.ctx, p.policy, func(ctx context.Context) error {
		saveAttempts.Inc()
		return p.store.Save(ctx, st)
	})
	if err != nil {
		p.degrade(st, attempts, err)
		return fmt.Errorf("%w: save board %s: %v", board.ErrPersistenceDegraded, st.Date, err)
	}
	if attempts > 1 {
		p.log.Warnf("board %s saved at version %d after %d attempts", st.Date, st.Version, attempts)
	}
	if p.engine.Degraded() {
		p.engine.setDegraded(false)
		p.log.Infof("board %s persistence recovered at version %d", st.Date, st.Version)
		p.publish(events.PersistenceRecovered{Date: st.Date, Version: st.Version, Time: time.Now()})
	}
	return nil
}

func (p *persister) degrade(st boardstore.State, attempts int, err error) {
	saveFailures.Inc()
	p.log.Errorf("board %s: save of version %d failed after %d attempts: %v", st.Date, st.Version, attempts, err)
	monitoring.CaptureException(err, map[string]string{"component": "persister", "date": st.Date})
	if !p.engine.Degraded() {
		p.engine.setDegraded(true)
	}
	p.publish(events.PersistenceDegraded{Date: st.Date, Version: st.Version, Attempts: attempts, Err: err, Time: time.Now()})
}

// pushStatuses writes status changes back to the job store. Failed updates
// are requeued unless a newer status arrived meanwhile.
func (p *persister) pushStatuses(statuses map[string]model.Status) error {
	var firstErr error
	for id, st := range statuses {
		_, err := retryOp(p.ctx, p.policy, func(ctx context.Context) error {
			return p.registry.UpdateStatus(ctx, id, st)
		})
		if err == nil {
			continue
		}
		p.log.Warnf("status update %s -> %s not delivered: %v", id, st, err)
		monitoring.CaptureException(err, map[string]string{"component": "persister", "job_id": id})
		p.mu.Lock()
		if _, newer := p.statuses[id]; !newer {
			p.statuses[id] = st
		}
		p.mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *persister) publish(ev any) {
	if p.bus != nil {
		p.bus.Publish(ev)
	}
}
