// Package eventbus provides in-process publish/subscribe fan-out.
package eventbus

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus is the untyped bus shared by the service's components.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	SubscribeSize(n int) <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation.
type Bus = TypedBus[Event]

var _ EventBus = (*Bus)(nil)

// New creates a new Bus.
func New() *Bus { return NewTyped[Event]() }
