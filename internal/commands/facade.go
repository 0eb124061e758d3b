// Package commands is the fixed set of operations the chat agent, the web
// UI and the CLI run against the ledger. Every operation returns the
// human-readable reply shown to the user.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finagent/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultRecentLimit = 10
	EmptyLedgerReply   = "No expenses recorded yet."
	displayTimeLayout  = "2006-01-02 15:04"
)

// Ledger is the write side the facade needs.
type Ledger interface {
	AddExpense(ctx context.Context, amount decimal.Decimal, category, note string) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (bool, error)
}

// Stats is the read side the facade needs.
type Stats interface {
	Snapshot(ctx context.Context) (core.Summary, error)
	Recent(ctx context.Context, limit int) ([]core.Expense, error)
}

type Facade struct {
	ledger      Ledger
	stats       Stats
	recentLimit int
	loc         *time.Location
}

// NewFacade builds a facade. recentLimit is the default for
// ListRecentExpenses; non-positive values fall back to DefaultRecentLimit.
func NewFacade(ledger Ledger, stats Stats, recentLimit int) *Facade {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	return &Facade{
		ledger:      ledger,
		stats:       stats,
		recentLimit: recentLimit,
		loc:         time.Local,
	}
}

// WithLocation sets the zone timestamps are shown in.
func (f *Facade) WithLocation(loc *time.Location) *Facade {
	f.loc = loc
	return f
}

// RecentLimit is the default number of records ListRecentExpenses shows.
func (f *Facade) RecentLimit() int { return f.recentLimit }

func (f *Facade) AddExpense(ctx context.Context, amount decimal.Decimal, category, note string) (string, error) {
	e, err := f.ledger.AddExpense(ctx, amount, category, note)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added expense: %s for %s", core.FormatCurrency(e.Amount), e.Category), nil
}

func (f *Facade) GetTotal(ctx context.Context) (string, error) {
	sum, err := f.stats.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return "Total spending: " + core.FormatCurrency(sum.Total), nil
}

func (f *Facade) GetAverage(ctx context.Context) (string, error) {
	sum, err := f.stats.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return "Average spending: " + core.FormatCurrency(sum.Average), nil
}

// ListRecentExpenses lists at most limit records, newest first. A
// non-positive limit means the default.
func (f *Facade) ListRecentExpenses(ctx context.Context, limit int) (string, error) {
	if limit <= 0 {
		limit = f.recentLimit
	}
	recent, err := f.stats.Recent(ctx, limit)
	if err != nil {
		return "", err
	}
	if len(recent) == 0 {
		return EmptyLedgerReply, nil
	}

	var b strings.Builder
	b.WriteString("Recent expenses:")
	for _, e := range recent {
		b.WriteString("\n")
		b.WriteString(f.FormatLine(e))
	}
	return b.String(), nil
}

// FormatLine renders one record as "• $7.50 - food (coffee) - 2026-10-15 09:12".
func (f *Facade) FormatLine(e core.Expense) string {
	line := "• " + core.FormatCurrency(e.Amount) + " - " + e.Category
	if e.Note != "" {
		line += " (" + e.Note + ")"
	}
	return line + " - " + f.FormatTime(e.Timestamp)
}

// FormatTime renders a timestamp the way replies show it.
func (f *Facade) FormatTime(t time.Time) string {
	return t.In(f.loc).Format(displayTimeLayout)
}

func (f *Facade) AnalyzeSpendingByCategory(ctx context.Context) (string, error) {
	sum, err := f.stats.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if len(sum.ByCategory) == 0 {
		return EmptyLedgerReply, nil
	}

	var b strings.Builder
	b.WriteString("Spending by category:")
	for _, g := range sum.ByCategory {
		fmt.Fprintf(&b, "\n• %s: %s (%s)", DisplayCategory(g.Category), core.FormatCurrency(g.Total), ItemCount(g.Count))
	}
	return b.String(), nil
}

func (f *Facade) DeleteExpense(ctx context.Context, id int64) (string, error) {
	deleted, err := f.ledger.DeleteExpense(ctx, id)
	if err != nil {
		return "", err
	}
	return DeleteReply(id, deleted), nil
}

// DeleteReply is the reply for a delete that did or did not match a record.
func DeleteReply(id int64, deleted bool) string {
	if !deleted {
		return fmt.Sprintf("No expense with id #%d", id)
	}
	return fmt.Sprintf("Deleted expense #%d", id)
}

// DisplayCategory capitalises each word of a label for display. Stored
// labels are never changed.
func DisplayCategory(category string) string {
	// Casers keep state and must not be shared between goroutines.
	return cases.Title(language.Und).String(category)
}

// ItemCount renders "1 item" or "N items".
func ItemCount(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}
