package assistant

import (
	"fmt"
	"strings"

	"github.com/skald-ai/skald/internal/assistant/confirm"
	"github.com/skald-ai/skald/internal/assistant/convctx"
)

// historyLimit bounds the rolling conversation log, in lines.
const historyLimit = 16

// Session owns all per-conversation state: the rolling history log, tracked
// event references, any pending destructive operation, and the safety-mode
// flag. It is created on the first utterance of a conversation and discarded
// when the client disconnects; nothing is persisted.
//
// Sessions are copy-on-write: [Assistant.HandleUtterance] never mutates its
// input, it returns the updated session. This keeps the turn handler pure and
// directly testable.
type Session struct {
	// Tracker remembers last-mentioned and last-created events.
	Tracker *convctx.Tracker

	// Pending is the staged destructive operation, or nil.
	Pending *confirm.Pending

	// History is the human-readable log of recent turns, oldest first.
	History []string

	// SafetyMode requires yes/no confirmation before destructive operations.
	SafetyMode bool
}

// NewSession returns an empty session with safety mode on.
func NewSession() *Session {
	return &Session{
		Tracker:    convctx.NewTracker(),
		SafetyMode: true,
	}
}

// clone returns a deep copy for copy-on-write turn handling.
func (s *Session) clone() *Session {
	c := &Session{
		Tracker:    s.Tracker.Clone(),
		SafetyMode: s.SafetyMode,
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	if len(s.History) > 0 {
		c.History = make([]string, len(s.History))
		copy(c.History, s.History)
	}
	return c
}

// appendTurn records a user/assistant exchange in the rolling log. Silent
// turns record only the user line.
func (s *Session) appendTurn(utterance, reply string) {
	s.History = append(s.History, "User: "+utterance)
	if reply != "" {
		s.History = append(s.History, "Assistant: "+reply)
	}
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

// HistoryLog renders the rolling history for LLM prompts.
func (s *Session) HistoryLog() string {
	return strings.Join(s.History, "\n")
}

// describePending returns a short label for logging.
func describePending(p *confirm.Pending) string {
	if p == nil {
		return "none"
	}
	return fmt.Sprint(p.Kind)
}
