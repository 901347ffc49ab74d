package history

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidTurn is returned when a turn lacks its conversation key.
var ErrInvalidTurn = errors.New("history: turn requires user id and channel")

// Turn is one processed inbound message and the reply sent for it. Turns are
// append-only. An empty Intent is stored as NULL.
type Turn struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Channel      string    `json:"channel"`
	InboundText  string    `json:"user_message"`
	OutboundText string    `json:"bot_reply"`
	Intent       string    `json:"intent,omitempty"`
	ContextUsed  bool      `json:"db_context_used"`
	Unrecognized bool      `json:"unrecognized"`
	NeedsHandoff bool      `json:"needs_handoff"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the fields every store requires.
func (t Turn) Validate() error {
	if strings.TrimSpace(t.UserID) == "" || strings.TrimSpace(t.Channel) == "" {
		return ErrInvalidTurn
	}
	return nil
}

// Window is the recent conversation for one (user, channel) pair, oldest
// first.
type Window []Turn

// Last returns at most the n newest turns, still oldest first.
func (w Window) Last(n int) Window {
	if n <= 0 {
		return nil
	}
	if len(w) <= n {
		return w
	}
	return w[len(w)-n:]
}

// InboundTexts returns the user-authored text of each turn, oldest first.
func (w Window) InboundTexts() []string {
	out := make([]string, 0, len(w))
	for _, t := range w {
		if s := strings.TrimSpace(t.InboundText); s != "" {
			out = append(out, s)
		}
	}
	return out
}
