// Package worker consumes ledger events and mirrors them into the journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finagent/internal/cache"
	"finagent/internal/core"
	"finagent/internal/events"
	"finagent/internal/journal"
	"finagent/internal/log"

	"github.com/shopspring/decimal"
)

// seenTTL is how long a handled message id is remembered to absorb broker
// redeliveries.
const seenTTL = time.Hour

// ExpenseReader is the store lookup the worker needs.
type ExpenseReader interface {
	GetByID(ctx context.Context, id int64) (core.Expense, error)
}

type MirrorWorker struct {
	store   ExpenseReader
	journal journal.Writer
	seen    *cache.LRUCache[struct{}]
	logger  *log.Logger
}

// NewMirrorWorker builds a worker. store may be nil, in which case created
// events are journalled from their payload alone.
func NewMirrorWorker(store ExpenseReader, w journal.Writer, dedupeSize int) *MirrorWorker {
	return &MirrorWorker{
		store:   store,
		journal: w,
		seen:    cache.NewLRUCache[struct{}](dedupeSize, seenTTL),
		logger:  log.Default().WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the dedupe cache so the caller can register it for cleanup.
func (w *MirrorWorker) Seen() *cache.LRUCache[struct{}] { return w.seen }

// HandleEvent appends one journal row for the event. An error asks the
// broker to redeliver.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *events.ExpenseEvent) error {
	if ev.MessageID != "" {
		if _, dup := w.seen.Get(ev.MessageID); dup {
			w.logger.InfoContext(ctx, "Skipping already mirrored event",
				log.FieldMessageID, ev.MessageID,
				log.FieldExpenseID, ev.ExpenseID)
			return nil
		}
	}

	var entry journal.Entry
	switch ev.Type {
	case events.ExpenseCreated:
		e, err := w.currentRecord(ctx, ev)
		if err != nil {
			return err
		}
		entry = journal.CreatedEntry(e)
	case events.ExpenseDeleted:
		entry = journal.DeletedEntry(ev.ExpenseID, ev.OccurredAt)
	default:
		w.logger.WarnContext(ctx, "Ignoring unknown event type", "type", ev.Type, log.FieldMessageID, ev.MessageID)
		return nil
	}

	ref, err := w.journal.AppendEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("append journal entry for expense %d: %w", ev.ExpenseID, err)
	}

	if ev.MessageID != "" {
		w.seen.Set(ev.MessageID, struct{}{})
	}

	w.logger.InfoContext(ctx, "Mirrored expense event",
		"type", ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldMessageID, ev.MessageID,
		"ref", ref)
	return nil
}

// currentRecord prefers the stored record and falls back to the event
// payload when the record has since been deleted.
func (w *MirrorWorker) currentRecord(ctx context.Context, ev *events.ExpenseEvent) (core.Expense, error) {
	if w.store != nil {
		e, err := w.store.GetByID(ctx, ev.ExpenseID)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, fmt.Errorf("get expense %d: %w", ev.ExpenseID, err)
		}
		w.logger.InfoContext(ctx, "Expense no longer stored, using event payload", log.FieldExpenseID, ev.ExpenseID)
	}

	amount, err := decimal.NewFromString(ev.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode amount of expense %d: %w", ev.ExpenseID, err)
	}
	return core.Expense{
		ID:        ev.ExpenseID,
		Amount:    amount,
		Category:  ev.Category,
		Note:      ev.Note,
		Timestamp: ev.RecordedAt,
	}, nil
}
