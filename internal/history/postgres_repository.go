package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores turns in the conversations table.
type PostgresRepository struct {
	db     pgxDB
	tracer trace.Tracer
	now    func() time.Time
}

// NewPostgresRepository creates a turn repository backed by pgx.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("history: pgx pool required")
	}
	return newPostgresRepositoryWithDB(pool)
}

func newPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{
		db:     db,
		tracer: otel.Tracer("clinicbot.internal.history"),
		now:    time.Now,
	}
}

// Load returns the newest limit turns for the pair, oldest first.
func (r *PostgresRepository) Load(ctx context.Context, userID, channel string, limit int) (Window, error) {
	ctx, span := r.tracer.Start(ctx, "history.load")
	defer span.End()

	if limit <= 0 {
		return Window{}, nil
	}
	query := `
		SELECT id::text, user_id, channel, user_message, bot_reply, COALESCE(intent, ''),
		       db_context_used, unrecognized, needs_handoff, created_at
		FROM conversations
		WHERE user_id = $1 AND channel = $2
		ORDER BY seq DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, userID, channel, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("history: load turns: %w", err)
	}
	defer rows.Close()

	var newestFirst Window
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Channel, &t.InboundText, &t.OutboundText, &t.Intent,
			&t.ContextUsed, &t.Unrecognized, &t.NeedsHandoff, &t.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("history: iterate turns: %w", err)
	}

	window := make(Window, len(newestFirst))
	for i, t := range newestFirst {
		window[len(newestFirst)-1-i] = t
	}
	return window, nil
}

// Append inserts the turn. Missing ID and CreatedAt are filled in.
func (r *PostgresRepository) Append(ctx context.Context, turn Turn) error {
	ctx, span := r.tracer.Start(ctx, "history.append")
	defer span.End()

	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = r.now().UTC()
	}
	query := `
		INSERT INTO conversations (id, user_id, channel, user_message, bot_reply, intent,
		                           db_context_used, unrecognized, needs_handoff, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
	`
	if _, err := r.db.Exec(ctx, query, turn.ID, turn.UserID, turn.Channel, turn.InboundText, turn.OutboundText,
		turn.Intent, turn.ContextUsed, turn.Unrecognized, turn.NeedsHandoff, turn.CreatedAt); err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}
