package amqp

import (
	"encoding/json"
	"time"
)

// MovementEventMessage is a lightweight lifecycle notification. It carries
// identifiers only; consumers fetch the full movement from the database.
type MovementEventMessage struct {
	Event        string    `json:"event"`
	MovementID   int64     `json:"movement_id,omitempty"`
	MovementCode string    `json:"movement_code,omitempty"`
	PeriodID     int64     `json:"period_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewMovementEventMessage creates a message stamped with at.
func NewMovementEventMessage(event string, movementID int64, code string, periodID int64, at time.Time) *MovementEventMessage {
	return &MovementEventMessage{
		Event:        event,
		MovementID:   movementID,
		MovementCode: code,
		PeriodID:     periodID,
		Timestamp:    at,
	}
}

// ToJSON converts the message to JSON bytes
func (m *MovementEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MovementEventMessageFromJSON creates a message from JSON bytes
func MovementEventMessageFromJSON(data []byte) (*MovementEventMessage, error) {
	var msg MovementEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
