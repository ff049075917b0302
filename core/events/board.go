package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/kilianp07/fieldboard/core/board"
)

// BoardChanged is published after every successful mutation.
type BoardChanged struct {
	ID       string     `json:"id"`
	Date     string     `json:"date"`
	Version  uint64     `json:"version"`
	Command  string     `json:"command"`
	Diff     board.Diff `json:"diff"`
	Snapshot board.View `json:"snapshot"`
	Time     time.Time  `json:"time"`
}

// NewBoardChanged stamps a change with a fresh id and time.
func NewBoardChanged(command string, d board.Diff, snap board.View) BoardChanged {
	return BoardChanged{
		ID:       uuid.NewString(),
		Date:     snap.Date,
		Version:  snap.Version,
		Command:  command,
		Diff:     d,
		Snapshot: snap,
		Time:     time.Now(),
	}
}

// BoardLoaded is published when a day's board is built.
type BoardLoaded struct {
	Date     string
	Version  uint64
	Jobs     int
	Spilled  int
	Duration time.Duration
}
