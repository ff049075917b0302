// Package events defines the board events emitted on the event bus.
//
// Available event types:
//   - BoardChanged: a command mutated a board
//   - CommandHandled: outcome and latency of every command
//   - BoardLoaded: a board was built for a day
//   - PersistenceDegraded / PersistenceRecovered: save health transitions
package events
