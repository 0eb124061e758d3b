package http

import (
	"net/http"
	"slices"
	"time"

	"finagent/internal/log"

	"github.com/google/uuid"
)

// SessionCookie identifies a browser's chat history.
const SessionCookie = "finagent_session"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one line of a browser session's chat history.
type ChatMessage struct {
	Role string
	Text string
	At   time.Time
}

type chatJSON struct {
	Reply string `json:"reply"`
}

// sessionID returns the caller's session id, issuing a cookie for new
// browsers.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// appendHistory adds messages to a session, keeping only the newest
// historyLimit entries.
func (s *Server) appendHistory(sessionID string, msgs ...ChatMessage) []ChatMessage {
	return s.sessions.Update(sessionID, func(current []ChatMessage, _ bool) []ChatMessage {
		next := append(slices.Clone(current), msgs...)
		if len(next) > s.historyLimit {
			next = next[len(next)-s.historyLimit:]
		}
		return next
	})
}

// handleChat runs one message through the agent and re-renders the log.
// The ledger may have changed, so the stats panel is asked to refresh. JSON
// callers get {"reply": ...} instead of HTML.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid request format.").Write(w)
		return
	}
	message := p.Get("message")
	if message == "" {
		ErrorResponse(http.StatusUnprocessableEntity, "Please type a message.").Write(w)
		return
	}

	sid := s.sessionID(w, r)
	asked := time.Now()
	reply := s.agent.Chat(r.Context(), message)
	s.chatMessages.Add(1)

	history := s.appendHistory(sid,
		ChatMessage{Role: RoleUser, Text: message, At: asked},
		ChatMessage{Role: RoleAssistant, Text: reply, At: time.Now()})

	log.FromContext(r.Context()).WithComponent(log.ComponentChat).DebugContext(r.Context(), "Chat message answered",
		log.FieldSessionID, sid,
		"history", len(history))

	if p.IsJSON() {
		writeJSON(w, http.StatusOK, chatJSON{Reply: reply})
		return
	}

	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerChatUpdated().
		ApplyHeaders(w)
	s.render(w, r, "chat", history)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	history, _ := s.sessions.Get(s.sessionID(w, r))
	s.render(w, r, "chat", history)
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(s.sessionID(w, r))
	NewHTMXResponse().TriggerChatUpdated().ApplyHeaders(w)
	s.render(w, r, "chat", []ChatMessage(nil))
}
