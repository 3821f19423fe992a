package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the frame every subscriber of a room topic receives.
type Envelope struct {
	Event      string          `json:"event"`
	RoomID     string          `json:"room_id"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEnvelope(event, roomID string, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{
		Event:      event,
		RoomID:     roomID,
		Payload:    raw,
		OccurredAt: at.UTC(),
	})
}
