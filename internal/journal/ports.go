// Package journal defines the append-only change log the mirror worker
// writes: one row per ledger event.
package journal

import (
	"context"
	"time"

	"finagent/internal/core"

	"github.com/shopspring/decimal"
)

const (
	EventCreated = "created"
	EventDeleted = "deleted"
)

// Header is the column layout of a journal sheet.
var Header = []any{"timestamp", "event", "id", "amount", "category", "note"}

// Entry is one journal row. Deleted entries carry only the id.
type Entry struct {
	At        time.Time
	Event     string
	ExpenseID int64
	Amount    decimal.Decimal
	Category  string
	Note      string
}

// CreatedEntry records an expense as it was stored.
func CreatedEntry(e core.Expense) Entry {
	return Entry{
		At:        e.Timestamp,
		Event:     EventCreated,
		ExpenseID: e.ID,
		Amount:    e.Amount,
		Category:  e.Category,
		Note:      e.Note,
	}
}

func DeletedEntry(id int64, at time.Time) Entry {
	return Entry{At: at, Event: EventDeleted, ExpenseID: id}
}

// Row renders the entry in Header order.
func (e Entry) Row() []any {
	amount := ""
	if e.Event != EventDeleted {
		amount = e.Amount.StringFixed(2)
	}
	return []any{
		e.At.UTC().Format(time.RFC3339),
		e.Event,
		e.ExpenseID,
		amount,
		e.Category,
		e.Note,
	}
}

// Writer appends entries and returns a reference to the written row.
type Writer interface {
	AppendEntry(ctx context.Context, e Entry) (ref string, err error)
}
