package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const systemPrompt = `You are a personal finance assistant that tracks expenses.
Map the user's message to exactly one action and reply ONLY with a JSON object:
{"action": "...", "parameters": {...}, "reply": "..."}

Actions:
- "add_expense": the user spent money. Parameters: "amount" (number, required), "category" (string, default "general"), "note" (string, optional).
- "get_total": total spending. No parameters.
- "get_average": average expense. No parameters.
- "list_recent_expenses": recent expenses. Parameters: "limit" (integer, optional).
- "analyze_spending_by_category": spending per category. No parameters.
- "delete_expense": remove an expense. Parameters: "id" (integer, required).
- "none": no ledger action applies. Put a short helpful answer in "reply".

Examples:
"I spent 50 on lunch" -> {"action": "add_expense", "parameters": {"amount": 50, "category": "food", "note": "lunch"}}
"how much have I spent?" -> {"action": "get_total", "parameters": {}}
"hello" -> {"action": "none", "parameters": {}, "reply": "Hi! Tell me what you spent or ask for your totals."}`

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 4 << 10

type LLMConfig struct {
	URL     string // full chat-completions endpoint
	APIKey  string
	Model   string
	Timeout time.Duration
}

// LLMResolver asks an OpenAI-compatible chat-completions endpoint for a
// JSON intent.
type LLMResolver struct {
	cfg    LLMConfig
	client *http.Client
}

func NewLLMResolver(cfg LLMConfig) *LLMResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LLMResolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *LLMResolver) Resolve(ctx context.Context, message string) (Intent, error) {
	payload, err := json.Marshal(chatRequest{
		Model: r.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return Intent{}, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return Intent{}, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.ErrorContext(ctx, "Language model returned an error",
			"status", resp.StatusCode,
			"body", string(body))
		return Intent{}, fmt.Errorf("language model returned status %s", resp.Status)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Intent{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return Intent{}, fmt.Errorf("language model returned no choices")
	}

	content := stripCodeFence(out.Choices[0].Message.Content)
	var intent Intent
	if err := json.Unmarshal([]byte(content), &intent); err != nil {
		return Intent{}, fmt.Errorf("decode intent %q: %w", truncate(content, 200), err)
	}
	intent.Action = strings.TrimSpace(intent.Action)
	if intent.Action == "" {
		intent.Action = ActionNone
	}

	slog.DebugContext(ctx, "Resolved intent",
		"action", intent.Action,
		"duration", time.Since(start))

	return intent, nil
}

// stripCodeFence removes a markdown ```json fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
