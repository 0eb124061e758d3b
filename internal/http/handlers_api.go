package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"finagent/internal/commands"
	"finagent/internal/core"
	"finagent/internal/log"
	"finagent/internal/query"
)

type expenseJSON struct {
	ID        int64  `json:"id"`
	Amount    string `json:"amount"`
	Category  string `json:"category"`
	Note      string `json:"note"`
	Timestamp string `json:"timestamp"`
}

type categoryJSON struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Total    string `json:"total"`
}

type statsJSON struct {
	Count      int            `json:"count"`
	Total      string         `json:"total"`
	Average    string         `json:"average"`
	ByCategory []categoryJSON `json:"by_category"`
}

func toJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:        e.ID,
		Amount:    e.Amount.String(),
		Category:  e.Category,
		Note:      e.Note,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
}

// handleAPIListExpenses returns records newest first. An optional ?limit
// keeps only the newest n.
func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeJSONError(w, r, log.OpList, commands.ErrInvalidArgs)
			return
		}
		limit = n
	}

	all, err := s.ledger.GetAll(r.Context())
	if err != nil {
		s.writeJSONError(w, r, log.OpList, err)
		return
	}
	if limit > 0 {
		all = all[:min(len(all), limit)]
	}

	out := make([]expenseJSON, 0, len(all))
	for _, e := range all {
		out = append(out, toJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAPICreateExpense accepts {"amount": "12.50", "category": "food",
// "note": "..."}. Amounts may be strings or numbers.
func (s *Server) handleAPICreateExpense(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.writeJSONError(w, r, log.OpCreate, commands.ErrInvalidArgs)
		return
	}
	call, err := commands.ParseCall(string(commands.OpAddExpense), body)
	if err != nil {
		s.writeJSONError(w, r, log.OpCreate, err)
		return
	}

	e, err := s.ledger.AddExpense(r.Context(), call.Amount, sanitizeInput(call.Category), sanitizeInput(call.Note))
	if err != nil {
		s.writeJSONError(w, r, log.OpCreate, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense recorded",
		log.NewFields().WithOperation(log.OpCreate).WithExpense(e.ID, e.Amount.String(), e.Category).ToSlice()...)
	writeJSON(w, http.StatusCreated, toJSON(e))
}

func (s *Server) handleAPIDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		s.writeJSONError(w, r, log.OpDelete, err)
		return
	}

	deleted, err := s.ledger.DeleteExpense(r.Context(), id)
	if err != nil {
		s.writeJSONError(w, r, log.OpDelete, err)
		return
	}
	if !deleted {
		s.writeJSONError(w, r, log.OpDelete, core.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	all, err := s.ledger.GetAll(r.Context())
	if err != nil {
		s.writeJSONError(w, r, log.OpStats, err)
		return
	}
	sum := query.Summarize(all)

	out := statsJSON{
		Count:      sum.Count,
		Total:      sum.Total.StringFixed(2),
		Average:    sum.Average.StringFixed(2),
		ByCategory: make([]categoryJSON, 0, len(sum.ByCategory)),
	}
	for _, g := range sum.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryJSON{
			Category: g.Category,
			Count:    g.Count,
			Total:    g.Total.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
