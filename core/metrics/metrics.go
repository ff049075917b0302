package metrics

import "time"

// CommandEvent describes one handled board command.
type CommandEvent struct {
	Date    string
	Command string
	Outcome string
	Reason  string
	Latency time.Duration
	Time    time.Time
}

// MetricsSink records board activity for observability purposes.
type MetricsSink interface {
	RecordCommand(ev CommandEvent) error
}

// LaneLoad is the fill of one lane after a change.
type LaneLoad struct {
	Date      string
	VehicleID string
	Jobs      int
	// Capacity is zero for unlimited lanes.
	Capacity int
	Fill     float64
	Time     time.Time
}

// LaneLoadRecorder records lane fill levels.
type LaneLoadRecorder interface {
	RecordLaneLoad(loads []LaneLoad) error
}

// BalanceEvent summarizes how evenly a board's vehicles are loaded.
type BalanceEvent struct {
	Date       string
	Lanes      int
	MeanFill   float64
	StdDevFill float64
	Assigned   int
	Unassigned int
	Time       time.Time
}

// BalanceRecorder records board balance statistics.
type BalanceRecorder interface {
	RecordBalance(ev BalanceEvent) error
}

// PersistenceEvent reports a change in a board's persistence health.
type PersistenceEvent struct {
	Date     string
	Version  uint64
	Degraded bool
	Attempts int
	Time     time.Time
}

// PersistenceRecorder records persistence degradation and recovery.
type PersistenceRecorder interface {
	RecordPersistence(ev PersistenceEvent) error
}

// BoardLoadEvent captures the build of a day's board.
type BoardLoadEvent struct {
	Date     string
	Jobs     int
	Spilled  int
	Duration time.Duration
	Time     time.Time
}

// BoardLoadRecorder records board loads.
type BoardLoadRecorder interface {
	RecordBoardLoad(ev BoardLoadEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordCommand(CommandEvent) error { return nil }

func (NopSink) RecordLaneLoad([]LaneLoad) error          { return nil }
func (NopSink) RecordBalance(BalanceEvent) error         { return nil }
func (NopSink) RecordPersistence(PersistenceEvent) error { return nil }
func (NopSink) RecordBoardLoad(BoardLoadEvent) error     { return nil }
