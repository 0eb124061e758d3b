package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"finagent/internal/commands"
	"finagent/internal/core"
	"finagent/internal/log"
	"finagent/internal/middleware/trace"
)

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, commands.ErrInvalidArgs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeInput removes control characters other than tab and newlines and
// trims surrounding whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseID parses a positive record id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, commands.ErrInvalidArgs
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorJSON struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSONError logs server-side failures and replies with the bounded
// user message for err.
func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	requestID := trace.GetRequestID(r.Context())
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithOperation(op).
			WithError(err)
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
	}
	writeJSON(w, status, errorJSON{
		Error:     commands.Describe(err),
		RequestID: requestID,
	})
}
