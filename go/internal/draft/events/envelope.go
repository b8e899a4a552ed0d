package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a payload with routing metadata. It is the unit handed to
// subscribers, sinks and the outbox.
type Envelope struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	DraftID   uuid.UUID       `json:"draftId"`
	Sequence  int64           `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into a fresh envelope.
func NewEnvelope(eventType string, draftID uuid.UUID, at time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		DraftID:   draftID,
		Timestamp: at,
		Payload:   raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.EventType, err)
	}
	return nil
}

// Subject is the bus subject the event is published under.
func (e Envelope) Subject() string {
	return fmt.Sprintf("draft.%s.%s", e.DraftID, e.EventType)
}
