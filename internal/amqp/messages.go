package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"financas/internal/core"
)

// EventKind names the write that produced a TransactionEvent.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

var ErrInvalidEvent = errors.New("invalid transaction event")

// TransactionEvent is published after every successful write. Created and
// updated events carry the stored transaction so consumers need no access to
// the database; deleted events carry only the ids.
type TransactionEvent struct {
	Kind          EventKind         `json:"kind"`
	TransactionID string            `json:"transactionId"`
	UserID        string            `json:"userId"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent builds an event for tx.
func NewTransactionEvent(kind EventKind, tx core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		Kind:          kind,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Timestamp:     time.Now().UTC(),
	}
	if kind != EventDeleted {
		ev.Transaction = &tx
	}
	return ev
}

// Validate checks the fields a consumer relies on.
func (m *TransactionEvent) Validate() error {
	switch m.Kind {
	case EventCreated, EventUpdated:
		if m.Transaction == nil {
			return fmt.Errorf("%w: %s event without transaction", ErrInvalidEvent, m.Kind)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, m.Kind)
	}
	if m.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidEvent)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionEventFromJSON decodes and validates a message body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
