package http

import (
	"context"
	"fmt"
	"net/http"

	"finagent/internal/commands"
	"finagent/internal/core"
	"finagent/internal/log"
	"finagent/internal/query"

	"github.com/shopspring/decimal"
)

// SuggestedCategories prefill the add form. Any other label is accepted.
var SuggestedCategories = []string{"food", "transport", "shopping", "entertainment", "bills", core.DefaultCategory}

// QuickCommands are the one-click chat prompts under the chat box.
var QuickCommands = []string{"Total", "Average", "Recent", "Categories"}

// minBarWidth keeps very small categories visible.
const minBarWidth = 2

type expenseRow struct {
	ID       int64
	Amount   string
	Category string
	Note     string
	When     string
}

type categoryBar struct {
	Name  string
	Total string
	Items string
	Width int
}

type statsView struct {
	Count      int
	Total      string
	Average    string
	Recent     []expenseRow
	Bars       []categoryBar
	EmptyReply string
}

type indexView struct {
	Stats           statsView
	Chat            []ChatMessage
	Categories      []string
	DefaultCategory string
	QuickCommands   []string
}

type listView struct {
	Count      int
	Total      string
	Rows       []expenseRow
	EmptyReply string
}

func (s *Server) row(e core.Expense) expenseRow {
	return expenseRow{
		ID:       e.ID,
		Amount:   core.FormatCurrency(e.Amount),
		Category: commands.DisplayCategory(e.Category),
		Note:     e.Note,
		When:     s.facade.FormatTime(e.Timestamp),
	}
}

// categoryBars scales each category against the largest one.
func categoryBars(groups []core.CategoryTotal) []categoryBar {
	if len(groups) == 0 {
		return nil
	}
	largest := groups[0].Total
	for _, g := range groups[1:] {
		if g.Total.GreaterThan(largest) {
			largest = g.Total
		}
	}

	bars := make([]categoryBar, 0, len(groups))
	for _, g := range groups {
		width := 0
		if largest.IsPositive() {
			width = int(g.Total.Mul(decimal.NewFromInt(100)).Div(largest).Round(0).IntPart())
			if width < minBarWidth {
				width = minBarWidth
			}
			if width > 100 {
				width = 100
			}
		}
		bars = append(bars, categoryBar{
			Name:  commands.DisplayCategory(g.Category),
			Total: core.FormatCurrency(g.Total),
			Items: commands.ItemCount(g.Count),
			Width: width,
		})
	}
	return bars
}

// loadStats builds the panel from a single read of the ledger so the
// numbers and the recent list always agree. Every render re-reads the store.
func (s *Server) loadStats(ctx context.Context) (statsView, error) {
	all, err := s.ledger.GetAll(ctx)
	if err != nil {
		return statsView{}, fmt.Errorf("load stats: %w", err)
	}
	sum := query.Summarize(all)
	recent := all[:min(len(all), s.facade.RecentLimit())]

	v := statsView{
		Count:      sum.Count,
		Total:      core.FormatCurrency(sum.Total),
		Average:    core.FormatCurrency(sum.Average),
		Bars:       categoryBars(sum.ByCategory),
		EmptyReply: commands.EmptyLedgerReply,
	}
	for _, e := range recent {
		v.Recent = append(v.Recent, s.row(e))
	}
	return v, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.loadStats(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load stats", log.FieldError, err)
		http.Error(w, commands.Describe(err), statusFor(err))
		return
	}

	history, _ := s.sessions.Get(s.sessionID(w, r))
	s.render(w, r, "index.html", indexView{
		Stats:           stats,
		Chat:            history,
		Categories:      SuggestedCategories,
		DefaultCategory: core.DefaultCategory,
		QuickCommands:   QuickCommands,
	})
}

// handleStatsPartial renders the quick stats, recent list and category bars.
func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	stats, err := s.loadStats(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to load stats", log.FieldError, err)
		ErrorResponse(statusFor(err), commands.Describe(err)).Write(w)
		return
	}
	s.render(w, r, "stats", stats)
}

// handleListExpenses renders every record, newest first.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	all, err := s.ledger.GetAll(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to list expenses", log.FieldError, err)
		http.Error(w, commands.Describe(err), statusFor(err))
		return
	}

	sum := decimal.Zero
	rows := make([]expenseRow, 0, len(all))
	for _, e := range all {
		sum = sum.Add(e.Amount)
		rows = append(rows, s.row(e))
	}
	s.render(w, r, "expenses.html", listView{
		Count:      len(all),
		Total:      core.FormatCurrency(sum),
		Rows:       rows,
		EmptyReply: commands.EmptyLedgerReply,
	})
}
