package board

// UndoEntry records where a job sat before it was moved to the unassigned
// lane.
type UndoEntry struct {
	JobID             string `json:"job_id"`
	PreviousVehicleID string `json:"previous_vehicle_id"`
	PreviousPosition  int    `json:"previous_position"`
}

// UndoLog is a bounded stack of reversible unassigns. With depth 1 it is a
// single slot overwritten by every push.
type UndoLog struct {
	depth   int
	entries []UndoEntry
}

// NewUndoLog returns a log keeping at most depth entries. Depths below one
// are raised to one.
func NewUndoLog(depth int) *UndoLog {
	if depth < 1 {
		depth = 1
	}
	return &UndoLog{depth: depth}
}

// Push stores e on top, dropping the oldest entry when full.
func (u *UndoLog) Push(e UndoEntry) {
	if len(u.entries) == u.depth {
		copy(u.entries, u.entries[1:])
		u.entries = u.entries[:len(u.entries)-1]
	}
	u.entries = append(u.entries, e)
}

// Peek returns the top entry without removing it.
func (u *UndoLog) Peek() (UndoEntry, bool) {
	if len(u.entries) == 0 {
		return UndoEntry{}, false
	}
	return u.entries[len(u.entries)-1], true
}

// Pop removes and returns the top entry.
func (u *UndoLog) Pop() (UndoEntry, bool) {
	e, ok := u.Peek()
	if ok {
		u.entries = u.entries[:len(u.entries)-1]
	}
	return e, ok
}

func (u *UndoLog) Len() int   { return len(u.entries) }
func (u *UndoLog) Depth() int { return u.depth }

// Entries returns a copy, oldest first.
func (u *UndoLog) Entries() []UndoEntry {
	out := make([]UndoEntry, len(u.entries))
	copy(out, u.entries)
	return out
}
