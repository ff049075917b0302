package scenarios

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/boardstore"
	"github.com/kilianp07/fieldboard/core/dispatch"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/fleet"
	"github.com/kilianp07/fieldboard/core/jobs"
	coremetrics "github.com/kilianp07/fieldboard/core/metrics"
	"github.com/kilianp07/fieldboard/core/model"
	"github.com/kilianp07/fieldboard/infra/logger"
	"github.com/kilianp07/fieldboard/infra/metrics"
)

// RunScenario replays sc against a fresh manager and checks every step
// outcome and the final board.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	records, err := sc.Records()
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	mgr, err := dispatch.NewManager(
		dispatch.Config{UndoDepth: sc.UndoDepth},
		jobs.NewMemoryRegistry(records...),
		fleet.StaticCatalog(sc.Vehicles),
		boardstore.NewMemoryStore(),
		logger.NopLogger{},
		nil,
	)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer func() { _ = mgr.Close(context.Background()) }()

	ctx := context.Background()
	e, err := mgr.Load(ctx, mustDay(t, sc.Date))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for i, st := range sc.Steps {
		version := e.Version()
		if st.Version != nil {
			version = *st.Version
		}
		_, err := apply(e, st, version)
		code := board.Code(err)
		_ = sink.RecordCommand(commandEvent(sc.Date, st.Op, code))
		want := st.Expect
		if want == "" {
			want = board.CodeOK
		}
		if code != want {
			t.Errorf("step %d (%s %s): expected %s, got %s (%v)", i, st.Op, st.Job, want, code, err)
		}
	}

	if got := testutil.CollectAndCount(reg, "board_command_events_total"); len(sc.Steps) > 0 && got == 0 {
		t.Errorf("expected command metrics to be recorded")
	}

	v := e.Snapshot()
	if v.Version != sc.Expected.Version {
		t.Errorf("expected version %d, got %d", sc.Expected.Version, v.Version)
	}
	if v.UndoAvailable != sc.Expected.UndoAvailable {
		t.Errorf("expected undo_available %t", sc.Expected.UndoAvailable)
	}
	for lane, want := range sc.Expected.Lanes {
		l, ok := v.Lane(lane)
		if !ok {
			t.Errorf("lane %s missing", lane)
			continue
		}
		got := l.JobIDs()
		if len(want) == 0 && len(got) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("lane %s: expected %v, got %v", lane, want, got)
		}
	}
	for id, want := range sc.Expected.Statuses {
		if got := statusOf(v, id); string(got) != want {
			t.Errorf("job %s: expected status %s, got %s", id, want, got)
		}
	}
}

func apply(e *dispatch.Engine, st Step, version uint64) (dispatch.Result, error) {
	switch st.Op {
	case "assign":
		return e.Assign(version, st.Job, st.Vehicle, st.Position)
	case "unassign":
		return e.Assign(version, st.Job, model.Unassigned, st.Position)
	case "reorder":
		return e.Reorder(version, st.Vehicle, st.Job, st.Position)
	case "undo":
		return e.UndoLastUnassign(version)
	case "status":
		return e.ChangeStatus(version, st.Job, model.Status(st.Status))
	default:
		return dispatch.Result{}, fmt.Errorf("unknown op %q", st.Op)
	}
}

func statusOf(v board.View, jobID string) model.Status {
	for _, l := range v.Lanes {
		for _, j := range l.Jobs {
			if j.ID == jobID {
				return j.Status
			}
		}
	}
	return ""
}

func commandEvent(date, op, code string) coremetrics.CommandEvent {
	ev := coremetrics.CommandEvent{Date: date, Command: op, Outcome: events.OutcomeOK, Time: time.Now()}
	if code != board.CodeOK {
		ev.Outcome = events.OutcomeRejected
		ev.Reason = code
	}
	return ev
}

func mustDay(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	return d
}
