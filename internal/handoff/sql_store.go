package handoff

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("clinicbot.internal.handoff")

// Store persists handoff records.
type Store interface {
	RecordUnanswered(ctx context.Context, q UnansweredQuestion) error
	OpenHandoff(ctx context.Context, h PendingHandoff) (PendingHandoff, error)
	ListOpen(ctx context.Context, limit int) ([]PendingHandoff, error)
	Close(ctx context.Context, id string) error
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	if db == nil {
		panic("handoff: sql db required")
	}
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) RecordUnanswered(ctx context.Context, q UnansweredQuestion) error {
	if err := validKey(q.UserID, q.Channel); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "handoff.record_unanswered")
	defer span.End()
	span.SetAttributes(attribute.String("channel", q.Channel))

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now().UTC()
	}

	query := `
		INSERT INTO unanswered_questions (id, user_id, channel, message_text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query, q.ID, q.UserID, q.Channel, q.MessageText, q.CreatedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("handoff: record unanswered question: %w", err)
	}
	return nil
}

// OpenHandoff inserts an open handoff, or refreshes the existing open one for
// the same conversation.
func (s *SQLStore) OpenHandoff(ctx context.Context, h PendingHandoff) (PendingHandoff, error) {
	if err := validKey(h.UserID, h.Channel); err != nil {
		return PendingHandoff{}, err
	}
	ctx, span := tracer.Start(ctx, "handoff.open")
	defer span.End()
	span.SetAttributes(attribute.String("channel", h.Channel))

	now := s.now().UTC()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.Status = StatusOpen

	query := `
		INSERT INTO pending_handoffs (id, user_id, channel, last_message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, channel) WHERE status = 'open'
		DO UPDATE SET last_message = EXCLUDED.last_message, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	row := s.db.QueryRowContext(ctx, query, h.ID, h.UserID, h.Channel, h.LastMessage, string(StatusOpen), now)
	if err := row.Scan(&h.ID, &h.CreatedAt, &h.UpdatedAt); err != nil {
		span.RecordError(err)
		return PendingHandoff{}, fmt.Errorf("handoff: open: %w", err)
	}
	return h, nil
}

// ListOpen returns open handoffs, oldest first.
func (s *SQLStore) ListOpen(ctx context.Context, limit int) ([]PendingHandoff, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, channel, COALESCE(last_message, ''), status, created_at, updated_at
		FROM pending_handoffs
		WHERE status = 'open'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("handoff: list open: %w", err)
	}
	defer rows.Close()

	var out []PendingHandoff
	for rows.Next() {
		var (
			h      PendingHandoff
			status string
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Channel, &h.LastMessage, &status, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("handoff: scan: %w", err)
		}
		h.Status = Status(status)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("handoff: list open: %w", err)
	}
	return out, nil
}

// Close marks an open handoff as handled.
func (s *SQLStore) Close(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	query := `UPDATE pending_handoffs SET status = 'closed', updated_at = $2 WHERE id = $1 AND status = 'open'`
	res, err := s.db.ExecContext(ctx, query, id, s.now().UTC())
	if err != nil {
		return fmt.Errorf("handoff: close: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("handoff: close: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
