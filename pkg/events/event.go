package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event
	// (e.g., "DOCUMENT_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Document lifecycle event types published by the ingestion flow.
const (
	DocumentReceived  = "DOCUMENT_RECEIVED"
	DocumentCompleted = "DOCUMENT_COMPLETED"
	DocumentFailed    = "DOCUMENT_FAILED"
	DocumentDeleted   = "DOCUMENT_DELETED"
)

// BaseEvent is the generic implementation used for one-off events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewDocumentEvent builds a lifecycle event for one document.
func NewDocumentEvent(eventType, documentId string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"document_id": documentId,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
