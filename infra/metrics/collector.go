package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/events"
	coremetrics "github.com/kilianp07/fieldboard/core/metrics"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.SubscribeSize(64)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.MetricsSink, ev eventbus.Event) {
	now := time.Now()
	switch e := ev.(type) {
	case events.CommandHandled:
		_ = sink.RecordCommand(coremetrics.CommandEvent{
			Date:    e.Date,
			Command: e.Command,
			Outcome: e.Outcome,
			Reason:  e.Reason,
			Latency: e.Latency,
			Time:    now,
		})
	case events.BoardChanged:
		if r, ok := sink.(coremetrics.LaneLoadRecorder); ok {
			_ = r.RecordLaneLoad(laneLoads(e.Snapshot, e.Time))
		}
		if r, ok := sink.(coremetrics.BalanceRecorder); ok {
			u := board.Utilize(e.Snapshot)
			_ = r.RecordBalance(coremetrics.BalanceEvent{
				Date:       e.Date,
				Lanes:      u.Lanes,
				MeanFill:   u.MeanFill,
				StdDevFill: u.StdDevFill,
				Assigned:   u.Assigned,
				Unassigned: u.Unassigned,
				Time:       e.Time,
			})
		}
	case events.PersistenceDegraded:
		if r, ok := sink.(coremetrics.PersistenceRecorder); ok {
			_ = r.RecordPersistence(coremetrics.PersistenceEvent{
				Date: e.Date, Version: e.Version, Degraded: true, Attempts: e.Attempts, Time: e.Time,
			})
		}
	case events.PersistenceRecovered:
		if r, ok := sink.(coremetrics.PersistenceRecorder); ok {
			_ = r.RecordPersistence(coremetrics.PersistenceEvent{Date: e.Date, Version: e.Version, Time: e.Time})
		}
	case events.BoardLoaded:
		if r, ok := sink.(coremetrics.BoardLoadRecorder); ok {
			_ = r.RecordBoardLoad(coremetrics.BoardLoadEvent{
				Date: e.Date, Jobs: e.Jobs, Spilled: e.Spilled, Duration: e.Duration, Time: now,
			})
		}
	}
}

func laneLoads(v board.View, at time.Time) []coremetrics.LaneLoad {
	out := make([]coremetrics.LaneLoad, 0, len(v.Lanes))
	for _, l := range v.Lanes {
		out = append(out, coremetrics.LaneLoad{
			Date:      v.Date,
			VehicleID: l.VehicleID,
			Jobs:      len(l.Jobs),
			Capacity:  int(l.Capacity),
			Fill:      l.Fill,
			Time:      at,
		})
	}
	return out
}
