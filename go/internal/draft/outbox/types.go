package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/dynasty-draft/go/internal/draft/events"
)

// OutboxEvent is a row of draft_outbox.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	DraftID   uuid.UUID       `json:"draft_id"`
	EventType string          `json:"event_type"`
	Sequence  int64           `json:"sequence"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// FromEnvelope converts an engine event into an outbox row.
func FromEnvelope(evt events.Envelope) OutboxEvent {
	return OutboxEvent{
		ID:        evt.EventID,
		DraftID:   evt.DraftID,
		EventType: evt.EventType,
		Sequence:  evt.Sequence,
		Payload:   evt.Payload,
		CreatedAt: evt.Timestamp,
	}
}

// Envelope converts the row back into the event it was stored from.
func (e OutboxEvent) Envelope() events.Envelope {
	return events.Envelope{
		EventID:   e.ID,
		EventType: e.EventType,
		DraftID:   e.DraftID,
		Sequence:  e.Sequence,
		Timestamp: e.CreatedAt,
		Payload:   e.Payload,
	}
}

// Publisher relays outbox events to the message bus.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}
