package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldboard/core/board"
	"github.com/kilianp07/fieldboard/core/events"
	"github.com/kilianp07/fieldboard/core/logger"
	coremqtt "github.com/kilianp07/fieldboard/core/mqtt"
	"github.com/kilianp07/fieldboard/internal/eventbus"
)

// ChangeMessage is published on {prefix}/{date}/changed.
type ChangeMessage struct {
	MessageID string     `json:"message_id"`
	EventID   string     `json:"event_id"`
	Date      string     `json:"date"`
	Version   uint64     `json:"version"`
	Command   string     `json:"command"`
	Diff      board.Diff `json:"diff"`
	Board     board.View `json:"board"`
	Time      time.Time  `json:"time"`
}

// WarningMessage is published on {prefix}/{date}/warnings.
type WarningMessage struct {
	MessageID string    `json:"message_id"`
	Date      string    `json:"date"`
	Type      string    `json:"type"`
	Version   uint64    `json:"version"`
	Attempts  int       `json:"attempts,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Warning types.
const (
	WarningPersistenceDegraded  = "persistence_degraded"
	WarningPersistenceRecovered = "persistence_recovered"
)

// ChangedTopic returns the topic carrying change messages for date.
func ChangedTopic(prefix, date string) string {
	return fmt.Sprintf("%s/%s/changed", topicPrefix(prefix), date)
}

// BoardTopic returns the retained topic holding the latest snapshot of date.
func BoardTopic(prefix, date string) string {
	return fmt.Sprintf("%s/%s/board", topicPrefix(prefix), date)
}

// WarningsTopic returns the topic carrying persistence warnings for date.
func WarningsTopic(prefix, date string) string {
	return fmt.Sprintf("%s/%s/warnings", topicPrefix(prefix), date)
}

func topicPrefix(p string) string {
	if p == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(p, "/")
}

// StartBoardRelay forwards board events from bus to pub until ctx is
// canceled or the bus closes. The returned channel is closed on exit.
func StartBoardRelay(ctx context.Context, bus eventbus.EventBus, pub coremqtt.Publisher, prefix string, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
		close(done)
		return done
	}
	log = logger.OrNop(log)
	sub := bus.SubscribeSize(64)
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
				if err := relay(pub, prefix, ev); err != nil {
					log.Warnf("board relay: %v", err)
				}
			}
		}
	}()
	return done
}

func relay(pub coremqtt.Publisher, prefix string, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.BoardChanged:
		msg := ChangeMessage{
			MessageID: uuid.NewString(),
			EventID:   e.ID,
			Date:      e.Date,
			Version:   e.Version,
			Command:   e.Command,
			Diff:      e.Diff,
			Board:     e.Snapshot,
			Time:      e.Time,
		}
		if err := publishJSON(pub, ChangedTopic(prefix, e.Date), msg, false); err != nil {
			return err
		}
		return publishJSON(pub, BoardTopic(prefix, e.Date), e.Snapshot, true)
	case events.PersistenceDegraded:
		msg := WarningMessage{
			MessageID: uuid.NewString(),
			Date:      e.Date,
			Type:      WarningPersistenceDegraded,
			Version:   e.Version,
			Attempts:  e.Attempts,
			Time:      e.Time,
		}
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
		return publishJSON(pub, WarningsTopic(prefix, e.Date), msg, false)
	case events.PersistenceRecovered:
		msg := WarningMessage{
			MessageID: uuid.NewString(),
			Date:      e.Date,
			Type:      WarningPersistenceRecovered,
			Version:   e.Version,
			Time:      e.Time,
		}
		return publishJSON(pub, WarningsTopic(prefix, e.Date), msg, false)
	}
	return nil
}

func publishJSON(pub coremqtt.Publisher, topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := pub.Publish(topic, payload, retained); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
