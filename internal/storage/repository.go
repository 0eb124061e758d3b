package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finagent/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that text ordering in SQLite matches
// chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository is the ledger store. It owns the schema and every
// read and write of expense records.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewSQLiteRepository opens (creating if needed) the ledger file at dbPath
// and migrates its schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w: %w", core.ErrStorageUnavailable, err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w: %w", core.ErrStorageUnavailable, err)
	}
	// A single connection lets SQLite serialise every write from this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w: %w", core.ErrStorageUnavailable, err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

// Close releases the database handle. Safe to call more than once.
func (r *SQLiteRepository) Close() error {
	r.closeOnce.Do(func() {
		if r.db != nil {
			r.closeErr = r.db.Close()
		}
	})
	return r.closeErr
}

// Ping reports whether the ledger file is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Add records an expense stamped with the current time and returns its id.
func (r *SQLiteRepository) Add(ctx context.Context, amount decimal.Decimal, category, note string) (int64, error) {
	e, err := r.AddAt(ctx, core.NewExpense{Amount: amount, Category: category, Note: note})
	if err != nil {
		return 0, err
	}
	return e.ID, nil
}

// AddAt validates and stores a record, returning it as persisted. The row
// is committed before AddAt returns. A zero Timestamp is replaced by the current time.
func (r *SQLiteRepository) AddAt(ctx context.Context, n core.NewExpense) (core.Expense, error) {
	if err := n.Validate(); err != nil {
		return core.Expense{}, err
	}

	ts := n.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Amount:    n.Amount.String(),
		Category:  core.CategoryOrDefault(n.Category),
		Note:      n.Note,
		CreatedAt: ts.UTC().Format(timeLayout),
	})
	if err != nil {
		return core.Expense{}, unavailable("create expense", err)
	}

	e, err := toCore(row)
	if err != nil {
		return core.Expense{}, err
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount", row.Amount,
		"category", e.Category)

	return e, nil
}

// DeleteByID removes the record with the given id. It reports false with a
// nil error when no such record exists; only storage failures are errors.
func (r *SQLiteRepository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	n, err := r.queries.DeleteExpense(ctx, id)
	if err != nil {
		return false, unavailable("delete expense", err)
	}
	return n > 0, nil
}

// GetByID returns a single record, or core.ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (core.Expense, error) {
	row, err := r.queries.GetExpense(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, unavailable("get expense", err)
	}
	return toCore(row)
}

// GetAll returns every record, newest first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}
	return toCoreSlice(rows)
}

// GetRecent returns at most limit records, newest first. A non-positive
// limit yields an empty slice.
func (r *SQLiteRepository) GetRecent(ctx context.Context, limit int) ([]core.Expense, error) {
	if limit <= 0 {
		return []core.Expense{}, nil
	}
	rows, err := r.queries.ListRecentExpenses(ctx, int64(limit))
	if err != nil {
		return nil, unavailable("list recent expenses", err)
	}
	return toCoreSlice(rows)
}

func toCoreSlice(rows []Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := toCore(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func toCore(row Expense) (core.Expense, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Expense{}, unavailable(fmt.Sprintf("decode amount of expense %d", row.ID), err)
	}
	ts, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.Expense{}, unavailable(fmt.Sprintf("decode timestamp of expense %d", row.ID), err)
	}
	return core.Expense{
		ID:        row.ID,
		Amount:    amount,
		Category:  row.Category,
		Note:      row.Note,
		Timestamp: ts,
	}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStorageUnavailable, err)
}
