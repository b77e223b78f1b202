package history

import (
	"context"
	"time"

	"github.com/loykin/pmr/internal/registry"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart       EventType = "start"
	EventStop        EventType = "stop"
	EventRestart     EventType = "restart"
	EventDelete      EventType = "delete"
	EventReconcile   EventType = "reconcile"
	EventSpawnFailed EventType = "spawn_failed"
)

// Event is one lifecycle transition of a registry record. Invocation ties
// together the events produced by a single CLI run (e.g. restart emits stop
// and restart).
type Event struct {
	Type       EventType       `json:"type" yaml:"type"`
	OccurredAt time.Time       `json:"occurred_at" yaml:"occurred_at"`
	Invocation string          `json:"invocation" yaml:"invocation"`
	Record     registry.Record `json:"record" yaml:"record"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

// Query filters Reader results. Zero RecordID means every record.
type Query struct {
	RecordID int
	Limit    int
}

// Reader is implemented by sinks that can replay what they stored.
type Reader interface {
	Events(ctx context.Context, q Query) ([]Event, error)
}

// Nop discards events.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
func (Nop) Close() error                      { return nil }
