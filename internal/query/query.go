// Package query computes read-only statistics over the ledger. Every call
// re-reads the store; nothing is cached between calls.
package query

import (
	"context"
	"sort"

	"finagent/internal/core"

	"github.com/shopspring/decimal"
)

// Reader is the subset of the ledger store the query layer needs.
type Reader interface {
	GetAll(ctx context.Context) ([]core.Expense, error)
	GetRecent(ctx context.Context, limit int) ([]core.Expense, error)
}

type Service struct {
	store Reader
}

func NewService(store Reader) *Service {
	return &Service{store: store}
}

// Total returns the exact sum of all amounts, zero on an empty ledger.
func (s *Service) Total(ctx context.Context) (decimal.Decimal, error) {
	sum, err := s.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Total, nil
}

// Average returns the mean amount rounded to two places, zero on an empty
// ledger.
func (s *Service) Average(ctx context.Context) (decimal.Decimal, error) {
	sum, err := s.Snapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return sum.Average, nil
}

// ByCategory groups records by exact category label, highest total first.
func (s *Service) ByCategory(ctx context.Context) ([]core.CategoryTotal, error) {
	sum, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sum.ByCategory, nil
}

// ByCategoryMap is ByCategory keyed by label.
func (s *Service) ByCategoryMap(ctx context.Context) (map[string]core.CategoryTotal, error) {
	groups, err := s.ByCategory(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]core.CategoryTotal, len(groups))
	for _, g := range groups {
		out[g.Category] = g
	}
	return out, nil
}

// Recent returns at most limit records, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]core.Expense, error) {
	return s.store.GetRecent(ctx, limit)
}

// Snapshot reads the ledger once and summarizes it, so callers that show
// several statistics together get numbers from the same state.
func (s *Service) Snapshot(ctx context.Context) (core.Summary, error) {
	all, err := s.store.GetAll(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return Summarize(all), nil
}

// Summarize aggregates a set of records. Sums are exact; only the average
// is rounded.
func Summarize(expenses []core.Expense) core.Summary {
	sum := core.Summary{
		Count:      len(expenses),
		Total:      decimal.Zero,
		Average:    decimal.Zero,
		ByCategory: []core.CategoryTotal{},
	}

	index := make(map[string]int)
	for _, e := range expenses {
		sum.Total = sum.Total.Add(e.Amount)

		i, ok := index[e.Category]
		if !ok {
			i = len(sum.ByCategory)
			index[e.Category] = i
			sum.ByCategory = append(sum.ByCategory, core.CategoryTotal{Category: e.Category, Total: decimal.Zero})
		}
		sum.ByCategory[i].Count++
		sum.ByCategory[i].Total = sum.ByCategory[i].Total.Add(e.Amount)
	}

	if sum.Count > 0 {
		sum.Average = sum.Total.Div(decimal.NewFromInt(int64(sum.Count))).Round(2)
	}

	sort.Slice(sum.ByCategory, func(a, b int) bool {
		ga, gb := sum.ByCategory[a], sum.ByCategory[b]
		if c := ga.Total.Cmp(gb.Total); c != 0 {
			return c > 0
		}
		return ga.Category < gb.Category
	})

	return sum
}
