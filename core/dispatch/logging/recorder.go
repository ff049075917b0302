package logging

import (
	"context"
	"time"

	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/logger"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// StartRecorder appends every BoardChanged event seen on bus to store until
// ctx is canceled or the bus is closed. The returned channel is closed when
// the recorder stops.
func StartRecorder(ctx context.Context, bus eventbus.EventBus, store LogStore, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || store == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.SubscribeSize(256)
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				bc, isChange := ev.(events.BoardChanged)
				if !isChange {
					continue
				}
				actx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := store.Append(actx, RecordFrom(bc)); err != nil {
					log.Errorf("journal append %s v%d: %v", bc.Date, bc.Version, err)
				}
				cancel()
			}
		}
	}()
	return done
}
