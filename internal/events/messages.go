package events

import (
	"encoding/json"
	"fmt"
	"time"

	"finagent/internal/core"

	"github.com/google/uuid"
)

type EventType string

const (
	ExpenseCreated EventType = "expense.created"
	ExpenseDeleted EventType = "expense.deleted"
)

// ExpenseEvent announces a committed change to the ledger. Created events
// carry the record's fields so consumers can act without reading the store;
// deleted events carry only the id.
type ExpenseEvent struct {
	MessageID  string    `json:"message_id"`
	Type       EventType `json:"type"`
	ExpenseID  int64     `json:"expense_id"`
	Amount     string    `json:"amount,omitempty"`
	Category   string    `json:"category,omitempty"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewCreatedEvent(e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID:  uuid.NewString(),
		Type:       ExpenseCreated,
		ExpenseID:  e.ID,
		Amount:     e.Amount.String(),
		Category:   e.Category,
		Note:       e.Note,
		RecordedAt: e.Timestamp.UTC(),
		OccurredAt: time.Now().UTC(),
	}
}

func NewDeletedEvent(id int64) *ExpenseEvent {
	return &ExpenseEvent{
		MessageID:  uuid.NewString(),
		Type:       ExpenseDeleted,
		ExpenseID:  id,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and checks a message body. Unknown event
// types and missing ids are rejected so the consumer can drop them.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Type {
	case ExpenseCreated, ExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.ExpenseID <= 0 {
		return nil, fmt.Errorf("event %s has no expense id", msg.MessageID)
	}
	return &msg, nil
}
