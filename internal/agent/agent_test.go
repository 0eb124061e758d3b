package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finagent/internal/cache"
	"finagent/internal/commands"
	"finagent/internal/core"
)

type fakeInvoker struct {
	mu    sync.Mutex
	calls []commands.Call
	reply string
	err   error
}

func (f *fakeInvoker) Invoke(_ context.Context, c commands.Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.reply, f.err
}

type countingResolver struct {
	calls  atomic.Int32
	intent Intent
	err    error
	delay  time.Duration
}

func (r *countingResolver) Resolve(context.Context, string) (Intent, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	return r.intent, r.err
}

func TestChatDispatchesResolvedCall(t *testing.T) {
	inv := &fakeInvoker{reply: "Added expense: $50.00 for food"}
	res := &countingResolver{intent: Intent{
		Action:     "add_expense",
		Parameters: json.RawMessage(`{"amount": 50, "category": "food", "note": "lunch"}`),
	}}
	a := New(res, inv, nil)

	got := a.Chat(context.Background(), "I spent 50 on lunch")
	if got != "Added expense: $50.00 for food" {
		t.Errorf("reply = %q", got)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(inv.calls))
	}
	c := inv.calls[0]
	if c.Name != commands.OpAddExpense || c.Amount.String() != "50" || c.Category != "food" || c.Note != "lunch" {
		t.Errorf("unexpected call %+v", c)
	}
}

func TestChatQuickCommands(t *testing.T) {
	inv := &fakeInvoker{reply: "Total spending: $0.00"}
	a := New(Chain{DefaultQuickCommands()}, inv, nil)

	for msg, want := range map[string]commands.Name{
		"total spending":               commands.OpGetTotal,
		"  Average   Spending ":        commands.OpGetAverage,
		"show recent expenses":         commands.OpListRecentExpenses,
		"ANALYZE spending by category": commands.OpAnalyzeSpendingByCategory,
	} {
		inv.calls = nil
		a.Chat(context.Background(), msg)
		if len(inv.calls) != 1 || inv.calls[0].Name != want {
			t.Errorf("%q dispatched %+v, want %s", msg, inv.calls, want)
		}
	}

	if got := a.Chat(context.Background(), "what's the weather"); got != HelpReply {
		t.Errorf("unmatched message reply = %q", got)
	}
}

func TestChatNeverReturnsRawErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("resolver failure", func(t *testing.T) {
		a := New(&countingResolver{err: errors.New("dial tcp 10.0.0.1:443: i/o timeout")}, &fakeInvoker{}, nil)
		got := a.Chat(ctx, "I spent 5")
		if !strings.HasPrefix(got, "Sorry, something went wrong: ") || strings.Contains(got, "10.0.0.1") {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("invalid amount", func(t *testing.T) {
		res := &countingResolver{intent: Intent{Action: "add_expense", Parameters: json.RawMessage(`{"amount": -4}`)}}
		inv := &fakeInvoker{}
		got := New(res, inv, nil).Chat(ctx, "I spent minus four")
		if got != "Sorry, something went wrong: Amount must be a positive number." {
			t.Errorf("reply = %q", got)
		}
		if len(inv.calls) != 0 {
			t.Error("invalid call must not reach the facade")
		}
	})

	t.Run("storage failure", func(t *testing.T) {
		res := &countingResolver{intent: Intent{Action: "get_total"}}
		inv := &fakeInvoker{err: core.ErrStorageUnavailable}
		got := New(res, inv, nil).Chat(ctx, "total")
		if got != "Sorry, something went wrong: The ledger is unavailable right now. Please try again." {
			t.Errorf("reply = %q", got)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		res := &countingResolver{intent: Intent{Action: "transfer_money"}}
		got := New(res, &fakeInvoker{}, nil).Chat(ctx, "send 5 to bob")
		if !strings.HasPrefix(got, "Sorry, something went wrong: ") {
			t.Errorf("reply = %q", got)
		}
	})
}

func TestChatConversationalReply(t *testing.T) {
	res := &countingResolver{intent: Intent{Action: ActionNone, Reply: strings.Repeat("a", MaxReplyRunes+50)}}
	inv := &fakeInvoker{}
	got := New(res, inv, nil).Chat(context.Background(), "hello")

	if n := len([]rune(got)); n != MaxReplyRunes {
		t.Errorf("reply length = %d, want %d", n, MaxReplyRunes)
	}
	if len(inv.calls) != 0 {
		t.Error("no facade call expected")
	}
}

func TestChatCachesIntents(t *testing.T) {
	res := &countingResolver{intent: Intent{Action: "get_total"}}
	inv := &fakeInvoker{reply: "Total spending: $1.00"}
	a := New(res, inv, cache.NewLRUCache[Intent](10, time.Minute))

	a.Chat(context.Background(), "How much in total?")
	a.Chat(context.Background(), "how much in   TOTAL?")

	if res.calls.Load() != 1 {
		t.Errorf("resolver called %d times, want 1", res.calls.Load())
	}
	if len(inv.calls) != 2 {
		t.Errorf("facade called %d times, want 2", len(inv.calls))
	}
}

func TestChatCoalescesConcurrentResolution(t *testing.T) {
	res := &countingResolver{intent: Intent{Action: "get_average"}, delay: 50 * time.Millisecond}
	inv := &fakeInvoker{reply: "Average spending: $0.00"}
	a := New(res, inv, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Chat(context.Background(), "average please")
		}()
	}
	wg.Wait()

	if n := res.calls.Load(); n >= 5 {
		t.Errorf("expected concurrent resolutions to be coalesced, got %d calls", n)
	}
	if len(inv.calls) != 5 {
		t.Errorf("facade called %d times, want 5", len(inv.calls))
	}
}

// gatedResolver blocks until released or its context ends.
type gatedResolver struct {
	intent  Intent
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (r *gatedResolver) Resolve(ctx context.Context, _ string) (Intent, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
		return r.intent, nil
	case <-ctx.Done():
		return Intent{}, ctx.Err()
	}
}

func TestChatSharedResolutionOutlivesFirstCaller(t *testing.T) {
	res := &gatedResolver{
		intent:  Intent{Action: "get_total"},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	inv := &fakeInvoker{reply: "Total spending: $0.00"}
	a := New(res, inv, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstReply := make(chan string, 1)
	go func() { firstReply <- a.Chat(firstCtx, "how much in total") }()
	<-res.started

	secondReply := make(chan string, 1)
	go func() { secondReply <- a.Chat(context.Background(), "how much in total") }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	select {
	case got := <-firstReply:
		if !strings.HasPrefix(got, errorPrefix) {
			t.Errorf("cancelled caller reply = %q, want an apology", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(res.release)
	select {
	case got := <-secondReply:
		if got != "Total spending: $0.00" {
			t.Errorf("second caller reply = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
}

func TestLLMResolver(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"`+
			"```json\\n"+`{\"action\":\"add_expense\",\"parameters\":{\"amount\":12.5,\"category\":\"food\"}}`+"\\n```"+`"}}]}`)
	}))
	defer srv.Close()

	r := NewLLMResolver(LLMConfig{URL: srv.URL, APIKey: "secret", Model: "test-model"})
	intent, err := r.Resolve(context.Background(), "I spent 12.50 on food")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Model != "test-model" || len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "I spent 12.50 on food" {
		t.Errorf("unexpected request %+v", gotReq)
	}
	if intent.Action != "add_expense" {
		t.Errorf("Action = %q", intent.Action)
	}
	call, err := commands.ParseCall(intent.Action, intent.Parameters)
	if err != nil || call.Amount.String() != "12.5" || call.Category != "food" {
		t.Errorf("ParseCall = %+v, %v", call, err)
	}
}

func TestLLMResolverErrors(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		},
		"no choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[]}`)
		},
		"non-json content": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"I think you want the total"}}]}`)
		},
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()
			if _, err := NewLLMResolver(LLMConfig{URL: srv.URL}).Resolve(context.Background(), "x"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestChainFallsThrough(t *testing.T) {
	llm := &countingResolver{intent: Intent{Action: "get_total"}}
	chain := Chain{DefaultQuickCommands(), llm}

	intent, err := chain.Resolve(context.Background(), "average")
	if err != nil || intent.Action != string(commands.OpGetAverage) || llm.calls.Load() != 0 {
		t.Fatalf("quick command should win: %+v %v", intent, err)
	}

	intent, err = chain.Resolve(context.Background(), "how much did I spend")
	if err != nil || intent.Action != "get_total" || llm.calls.Load() != 1 {
		t.Fatalf("expected fallthrough to llm: %+v %v", intent, err)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                 `{"a":1}`,
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}```":       `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripCodeFence(in); got != want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
