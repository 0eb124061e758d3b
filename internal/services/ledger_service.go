package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"finagent/internal/core"
	"finagent/internal/events"
	"finagent/internal/log"

	"github.com/shopspring/decimal"
)

// Store is the ledger persistence the service writes through.
type Store interface {
	AddAt(ctx context.Context, n core.NewExpense) (core.Expense, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	GetByID(ctx context.Context, id int64) (core.Expense, error)
	GetAll(ctx context.Context) ([]core.Expense, error)
	GetRecent(ctx context.Context, limit int) ([]core.Expense, error)
	Ping(ctx context.Context) error
}

// LedgerService writes to the store first and then announces the change on
// the event bus. Publishing is best-effort: a committed write is never
// reported as failed because the bus is down.
type LedgerService struct {
	store     Store
	publisher events.Publisher

	created atomic.Int64
	deleted atomic.Int64
}

// NewLedgerService wires a store with an optional publisher (nil disables
// event publishing).
func NewLedgerService(store Store, publisher events.Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
	}
}

// AddExpense records an expense stamped now.
func (s *LedgerService) AddExpense(ctx context.Context, amount decimal.Decimal, category, note string) (core.Expense, error) {
	return s.Record(ctx, core.NewExpense{Amount: amount, Category: category, Note: note})
}

// Record stores n and publishes an expense.created event.
func (s *LedgerService) Record(ctx context.Context, n core.NewExpense) (core.Expense, error) {
	e, err := s.store.AddAt(ctx, n)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.created.Add(1)

	s.publish(ctx, events.NewCreatedEvent(e))
	return e, nil
}

// DeleteExpense removes a record and, if one was removed, publishes an
// expense.deleted event.
func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	if deleted {
		s.deleted.Add(1)
		s.publish(ctx, events.NewDeletedEvent(id))
	}
	return deleted, nil
}

// Mutations reports how many expenses this process recorded and deleted,
// whichever front end asked for it.
func (s *LedgerService) Mutations() (created, deleted int64) {
	return s.created.Load(), s.deleted.Load()
}

func (s *LedgerService) GetByID(ctx context.Context, id int64) (core.Expense, error) {
	return s.store.GetByID(ctx, id)
}

func (s *LedgerService) GetAll(ctx context.Context) ([]core.Expense, error) {
	return s.store.GetAll(ctx)
}

func (s *LedgerService) GetRecent(ctx context.Context, limit int) ([]core.Expense, error) {
	return s.store.GetRecent(ctx, limit)
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) publish(ctx context.Context, event *events.ExpenseEvent) {
	if s.publisher == nil {
		s.logger(ctx).DebugContext(ctx, "Event bus not configured, skipping event",
			"type", event.Type,
			log.FieldExpenseID, event.ExpenseID)
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger(ctx).ErrorContext(ctx, "Failed to publish expense event",
			"type", event.Type,
			log.FieldExpenseID, event.ExpenseID,
			log.FieldMessageID, event.MessageID,
			log.FieldError, err)
	}
}

func (s *LedgerService) logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentLedger)
}

// Close closes the store and the publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error

	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
