package core

import "time"

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// TransactionEvent records that a transaction was written. It carries ids
// only; consumers read the current row if they need more.
type TransactionEvent struct {
	Type          EventType
	TransactionID int64
	UserID        string
	OccurredAt    time.Time
}

func (t EventType) IsValid() bool {
	switch t {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		return true
	default:
		return false
	}
}
