package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the lifecycle phase of a reconciliation run
type EventType string

const (
	EventTypeStarted   EventType = "started"
	EventTypeCompleted EventType = "completed"
)

// EntityType represents the entity an event is about
type EntityType string

const (
	EntityTypeReconciliation EntityType = "reconciliation"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "reconciliation.started"
	Entity    EntityType  `json:"entity"`    // Entity type
	Payload   interface{} `json:"payload"`   // Event data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ReconciliationStarted creates a reconciliation.started event
func ReconciliationStarted(payload interface{}) Event {
	return NewEvent(EventTypeStarted, EntityTypeReconciliation, payload)
}

// ReconciliationCompleted creates a reconciliation.completed event
func ReconciliationCompleted(payload interface{}) Event {
	return NewEvent(EventTypeCompleted, EntityTypeReconciliation, payload)
}
