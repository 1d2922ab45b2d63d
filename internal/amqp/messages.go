package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finance/internal/core"
)

// TransactionEventMessage is the wire form of core.TransactionEvent. It
// carries ids only; consumers read current state from the store.
type TransactionEventMessage struct {
	Type          core.EventType `json:"type"`
	TransactionID int64          `json:"transaction_id"`
	UserID        string         `json:"user_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func NewTransactionEventMessage(e core.TransactionEvent) *TransactionEventMessage {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return &TransactionEventMessage{
		Type:          e.Type,
		TransactionID: e.TransactionID,
		UserID:        e.UserID,
		OccurredAt:    occurred,
	}
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *TransactionEventMessage) Event() core.TransactionEvent {
	return core.TransactionEvent{
		Type:          m.Type,
		TransactionID: m.TransactionID,
		UserID:        m.UserID,
		OccurredAt:    m.OccurredAt,
	}
}

// TransactionEventMessageFromJSON rejects unknown event types and messages
// without ids, so poison messages are dropped instead of requeued.
func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.TransactionID <= 0 || msg.UserID == "" {
		return nil, fmt.Errorf("event %s is missing ids", msg.Type)
	}
	return &msg, nil
}
