package http

import (
	"net/http"
	"time"

	"finagent/internal/commands"
	"finagent/internal/core"
	"finagent/internal/export"
	"finagent/internal/log"
)

// handleCreateExpense records an expense from the add form.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request format.").Write(w)
		return
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		ErrorResponse(statusFor(err), commands.Describe(err)).Write(w)
		return
	}

	reply, err := s.facade.AddExpense(r.Context(), amount, p.Get("category"), p.Get("note"))
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save expense",
			log.FieldOperation, log.OpCreate,
			log.FieldAmount, amount.String(),
			log.FieldError, err)
		ErrorResponse(statusFor(err), commands.Describe(err)).Write(w)
		return
	}

	SuccessResponse(reply).TriggerFormReset().Write(w)
}

// handleDeleteExpense deletes by id from the dashboard. A missing record is
// reported, not treated as an error.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request format.").Write(w)
		return
	}
	id, err := parseID(p.Get("id"))
	if err != nil {
		ErrorResponse(statusFor(err), commands.Describe(err)).Write(w)
		return
	}

	deleted, err := s.ledger.DeleteExpense(r.Context(), id)
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete expense",
			log.FieldOperation, log.OpDelete,
			log.FieldExpenseID, id,
			log.FieldError, err)
		ErrorResponse(statusFor(err), commands.Describe(err)).Write(w)
		return
	}

	reply := commands.DeleteReply(id, deleted)
	if !deleted {
		NewHTMXResponse().
			Status(http.StatusNotFound).
			Message("error", reply).
			TriggerNotification(NotificationWarning, reply, 5000).
			Write(w)
		return
	}
	SuccessResponse(reply).Write(w)
}

// handleExportCSV downloads every record, newest first.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	all, err := s.ledger.GetAll(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to export expenses", log.FieldError, err)
		http.Error(w, commands.Describe(err), statusFor(err))
		return
	}

	filename := "expenses-" + time.Now().Format("2006-01-02") + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := export.WriteCSV(w, all); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write CSV",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
	}
}
