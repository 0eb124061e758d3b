package commands

import (
	"errors"

	"finagent/internal/core"
)

// Describe turns an operation error into a short message fit to show a
// user. Raw error text is never included.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrInvalidAmount):
		return "Amount must be a positive number."
	case errors.Is(err, core.ErrStorageUnavailable):
		return "The ledger is unavailable right now. Please try again."
	case errors.Is(err, core.ErrNotFound):
		return "That expense does not exist."
	case errors.Is(err, ErrUnknownCommand):
		return "I can't do that. Try adding an expense or asking for totals."
	case errors.Is(err, ErrInvalidArgs):
		return "I couldn't understand the details of that request."
	default:
		return "Something went wrong."
	}
}
