package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"finagent/internal/commands"
)

// ActionNone marks an intent that needs no ledger operation, only a reply.
const ActionNone = "none"

// ErrNoIntent is returned by a resolver that cannot map a message.
var ErrNoIntent = errors.New("no intent resolved")

// Intent is a resolved message: at most one facade operation plus an
// optional conversational reply.
type Intent struct {
	Action     string          `json:"action"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Reply      string          `json:"reply,omitempty"`
}

// IntentResolver maps free text to an Intent.
type IntentResolver interface {
	Resolve(ctx context.Context, message string) (Intent, error)
}

// QuickCommands resolves the fixed phrases behind the UI's quick command
// buttons without calling out to a model.
type QuickCommands map[string]commands.Name

// DefaultQuickCommands are the phrases the chat buttons send.
func DefaultQuickCommands() QuickCommands {
	return QuickCommands{
		"total spending":               commands.OpGetTotal,
		"total":                        commands.OpGetTotal,
		"average spending":             commands.OpGetAverage,
		"average":                      commands.OpGetAverage,
		"show recent expenses":         commands.OpListRecentExpenses,
		"recent":                       commands.OpListRecentExpenses,
		"analyze spending by category": commands.OpAnalyzeSpendingByCategory,
		"categories":                   commands.OpAnalyzeSpendingByCategory,
	}
}

func (q QuickCommands) Resolve(_ context.Context, message string) (Intent, error) {
	if op, ok := q[normalize(message)]; ok {
		return Intent{Action: string(op)}, nil
	}
	return Intent{}, ErrNoIntent
}

// Chain tries each resolver in order, moving on only when one reports
// ErrNoIntent.
type Chain []IntentResolver

func (c Chain) Resolve(ctx context.Context, message string) (Intent, error) {
	for _, r := range c {
		intent, err := r.Resolve(ctx, message)
		if errors.Is(err, ErrNoIntent) {
			continue
		}
		return intent, err
	}
	return Intent{}, ErrNoIntent
}

func normalize(message string) string {
	return strings.Join(strings.Fields(strings.ToLower(message)), " ")
}
