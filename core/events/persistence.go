package events

import "time"

// PersistenceDegraded is published when a save exhausted its retries.
type PersistenceDegraded struct {
	Date     string
	Version  uint64
	Attempts int
	Err      error
	Time     time.Time
}

// PersistenceRecovered is published by the first successful save after a
// degradation.
type PersistenceRecovered struct {
	Date    string
	Version uint64
	Time    time.Time
}
