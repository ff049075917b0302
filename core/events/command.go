package events

import "time"

// Command outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// CommandHandled reports how a command ended. Reason is a board error code
// for rejected commands.
type CommandHandled struct {
	Date    string
	Command string
	Outcome string
	Reason  string
	Latency time.Duration
}
