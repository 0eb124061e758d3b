package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"finagent/internal/core"

	"github.com/shopspring/decimal"
)

// Name identifies one facade operation.
type Name string

const (
	OpAddExpense                Name = "add_expense"
	OpGetTotal                  Name = "get_total"
	OpGetAverage                Name = "get_average"
	OpListRecentExpenses        Name = "list_recent_expenses"
	OpAnalyzeSpendingByCategory Name = "analyze_spending_by_category"
	OpDeleteExpense             Name = "delete_expense"
)

// Names lists every operation in a stable order.
var Names = []Name{
	OpAddExpense,
	OpGetTotal,
	OpGetAverage,
	OpListRecentExpenses,
	OpAnalyzeSpendingByCategory,
	OpDeleteExpense,
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid command arguments")
)

// Call is one typed invocation. Only the fields its Name uses are read.
type Call struct {
	Name     Name
	Amount   decimal.Decimal
	Category string
	Note     string
	Limit    int
	ID       int64
}

// Invoke runs c against the facade.
func (f *Facade) Invoke(ctx context.Context, c Call) (string, error) {
	switch c.Name {
	case OpAddExpense:
		return f.AddExpense(ctx, c.Amount, c.Category, c.Note)
	case OpGetTotal:
		return f.GetTotal(ctx)
	case OpGetAverage:
		return f.GetAverage(ctx)
	case OpListRecentExpenses:
		return f.ListRecentExpenses(ctx, c.Limit)
	case OpAnalyzeSpendingByCategory:
		return f.AnalyzeSpendingByCategory(ctx)
	case OpDeleteExpense:
		return f.DeleteExpense(ctx, c.ID)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}

type rawArgs struct {
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Note     string          `json:"note"`
	Limit    *int            `json:"limit"`
	ID       *int64          `json:"id"`
}

// ParseCall builds a Call from an operation name and JSON arguments, as
// produced by the intent resolver. Amounts may be JSON numbers or strings.
func ParseCall(name string, args json.RawMessage) (Call, error) {
	c := Call{Name: Name(strings.TrimSpace(name))}
	if !known(c.Name) {
		return Call{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	var raw rawArgs
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Call{}, fmt.Errorf("%w: %w", ErrInvalidArgs, err)
		}
	}

	switch c.Name {
	case OpAddExpense:
		amount, err := parseRawAmount(raw.Amount)
		if err != nil {
			return Call{}, err
		}
		c.Amount = amount
		c.Category = strings.TrimSpace(raw.Category)
		c.Note = strings.TrimSpace(raw.Note)
	case OpListRecentExpenses:
		if raw.Limit != nil {
			c.Limit = *raw.Limit
		}
	case OpDeleteExpense:
		if raw.ID == nil || *raw.ID <= 0 {
			return Call{}, fmt.Errorf("%w: delete_expense needs a positive id", ErrInvalidArgs)
		}
		c.ID = *raw.ID
	}
	return c, nil
}

func parseRawAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, core.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, core.ErrInvalidAmount
		}
		return core.ParseAmount(s)
	}
	return core.ParseAmount(string(raw))
}

func known(n Name) bool {
	for _, k := range Names {
		if k == n {
			return true
		}
	}
	return false
}
