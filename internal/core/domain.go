package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory is applied when an expense is recorded without a category.
const DefaultCategory = "general"

type (
	// Expense is one persisted ledger record.
	Expense struct {
		ID        int64
		Amount    decimal.Decimal
		Category  string
		Note      string
		Timestamp time.Time
	}

	// NewExpense carries the caller-supplied fields of a record before the
	// store assigns its id. A zero Timestamp means "now".
	NewExpense struct {
		Amount    decimal.Decimal
		Category  string
		Note      string
		Timestamp time.Time
	}

	// CategoryTotal aggregates the records sharing one exact category label.
	CategoryTotal struct {
		Category string
		Count    int
		Total    decimal.Decimal
	}

	// Summary is a consistent set of statistics computed from one snapshot
	// of the ledger.
	Summary struct {
		Count      int
		Total      decimal.Decimal
		Average    decimal.Decimal // rounded to 2 places
		ByCategory []CategoryTotal // highest total first
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("expense not found")
)

// CategoryOrDefault returns the label unchanged, or DefaultCategory when it
// is empty. Labels are never trimmed or case-folded: "Food" and "food" are
// distinct categories.
func CategoryOrDefault(category string) string {
	if category == "" {
		return DefaultCategory
	}
	return category
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (n NewExpense) Validate() error {
	return ValidateAmount(n.Amount)
}
