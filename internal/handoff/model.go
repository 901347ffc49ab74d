// Package handoff records conversations that need a human: questions the
// assistant could not answer and open requests for staff follow-up.
package handoff

import (
	"errors"
	"strings"
	"time"
)

// Status of a pending handoff.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ErrInvalidRecord is returned when a record lacks its conversation key.
var ErrInvalidRecord = errors.New("handoff: user id and channel are required")

// ErrNotFound is returned when closing a handoff that does not exist or is
// already closed.
var ErrNotFound = errors.New("handoff: not found")

// UnansweredQuestion is an inbound message the assistant fell back on.
type UnansweredQuestion struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Channel     string    `json:"channel"`
	MessageText string    `json:"message_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingHandoff is a conversation waiting for staff. At most one open
// handoff exists per (user, channel); later requests refresh LastMessage.
type PendingHandoff struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Channel     string    `json:"channel"`
	LastMessage string    `json:"last_message"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func validKey(userID, channel string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(channel) == "" {
		return ErrInvalidRecord
	}
	return nil
}
