package core

import "time"

// OutboxEvent is a notification recorded in the same transaction as the
// change it describes, waiting to be relayed to the broker.
type OutboxEvent struct {
	ID          int64
	Name        string
	Payload     []byte
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt *time.Time
}
