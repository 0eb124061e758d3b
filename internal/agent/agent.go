// Package agent turns chat messages into at most one ledger operation and a
// reply. Intent resolution is delegated to an IntentResolver; the agent only
// validates, dispatches and formats.
package agent

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"finagent/internal/cache"
	"finagent/internal/commands"
	"finagent/internal/log"

	"golang.org/x/sync/singleflight"
)

const (
	// MaxReplyRunes bounds every reply the agent returns.
	MaxReplyRunes = 2000
	errorPrefix   = "Sorry, something went wrong: "

	// resolveTimeout bounds a shared resolution that no single caller owns.
	resolveTimeout = 2 * time.Minute
)

// HelpReply is returned when no resolver understands a message.
const HelpReply = `I can record expenses ("I spent 12.50 on lunch") and report your total, average, recent expenses or spending by category.`

// Invoker runs one typed facade call.
type Invoker interface {
	Invoke(ctx context.Context, c commands.Call) (string, error)
}

type Agent struct {
	resolver IntentResolver
	facade   Invoker
	intents  cache.Cache[Intent]
	group    singleflight.Group
}

// New builds an agent. intents may be nil to disable intent caching.
func New(resolver IntentResolver, facade Invoker, intents cache.Cache[Intent]) *Agent {
	return &Agent{
		resolver: resolver,
		facade:   facade,
		intents:  intents,
	}
}

// Chat answers one message. It never returns an error: failures become a
// bounded apology naming what went wrong in user terms.
func (a *Agent) Chat(ctx context.Context, message string) string {
	key := normalize(message)
	if key == "" {
		return HelpReply
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentChat)
	start := time.Now()
	intent, err := a.resolve(ctx, key, message)
	if errors.Is(err, ErrNoIntent) {
		return HelpReply
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to resolve intent", log.FieldOperation, log.OpChat, log.FieldError, err)
		return errorPrefix + "I couldn't reach the assistant. Please try again."
	}

	if intent.Action == ActionNone {
		if intent.Reply == "" {
			return HelpReply
		}
		return truncate(intent.Reply, MaxReplyRunes)
	}

	call, err := commands.ParseCall(intent.Action, intent.Parameters)
	if err != nil {
		logger.WarnContext(ctx, "Rejected resolved intent", log.FieldAction, intent.Action, log.FieldError, err)
		return truncate(errorPrefix+commands.Describe(err), MaxReplyRunes)
	}

	reply, err := a.facade.Invoke(ctx, call)
	if err != nil {
		logger.ErrorContext(ctx, "Command failed", log.FieldAction, call.Name, log.FieldError, err)
		return truncate(errorPrefix+commands.Describe(err), MaxReplyRunes)
	}

	logger.InfoContext(ctx, "Chat command handled",
		log.FieldAction, call.Name,
		log.FieldDuration, time.Since(start).Milliseconds())

	return truncate(reply, MaxReplyRunes)
}

// resolve coalesces concurrent identical messages into one resolver call
// and caches successful resolutions. Only the intent is cached; the
// operation itself runs on every message. The shared call is detached from
// any one caller, so a caller that goes away only abandons its own wait.
func (a *Agent) resolve(ctx context.Context, key, message string) (Intent, error) {
	if a.intents != nil {
		if intent, ok := a.intents.Get(key); ok {
			return intent, nil
		}
	}

	ch := a.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		intent, err := a.resolver.Resolve(shared, message)
		if err != nil {
			return Intent{}, err
		}
		if a.intents != nil {
			a.intents.Set(key, intent)
		}
		return intent, nil
	})

	select {
	case <-ctx.Done():
		return Intent{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Intent{}, res.Err
		}
		return res.Val.(Intent), nil
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
