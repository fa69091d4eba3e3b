package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventLaunch    EventType = "launch"
	EventTerminate EventType = "terminate"
)

// Event is one supervisor-observed lifecycle transition of the backend
// service. PID and URL are zero/empty when unknown (e.g. a launch before the
// handshake file appears).
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
	URL        string    `json:"url"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for lifecycle events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
