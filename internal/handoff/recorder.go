package handoff

import (
	"context"
	"log/slog"

	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

// Event is the slice of a handled turn that matters for staff follow-up.
type Event struct {
	UserID       string
	Channel      string
	Message      string
	Unrecognized bool
	NeedsHandoff bool
}

// Recorder turns handled messages into handoff records. Failures are logged
// and never reach the caller.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	if store == nil {
		panic("handoff: store required")
	}
	return &Recorder{store: store, logger: logger.Component("handoff")}
}

// Record stores an UnansweredQuestion when the turn was unrecognized and
// opens a PendingHandoff when it needs a human.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if ev.Unrecognized {
		if err := r.store.RecordUnanswered(ctx, UnansweredQuestion{
			UserID:      ev.UserID,
			Channel:     ev.Channel,
			MessageText: ev.Message,
		}); err != nil {
			r.logger.Warn("failed to record unanswered question",
				"channel", ev.Channel,
				"user", logging.RedactID(ev.UserID),
				"error", err,
			)
		}
	}
	if ev.NeedsHandoff {
		h, err := r.store.OpenHandoff(ctx, PendingHandoff{
			UserID:      ev.UserID,
			Channel:     ev.Channel,
			LastMessage: ev.Message,
		})
		if err != nil {
			r.logger.Warn("failed to open handoff",
				"channel", ev.Channel,
				"user", logging.RedactID(ev.UserID),
				"error", err,
			)
			return
		}
		r.logger.Info("handoff opened", "handoff_id", h.ID, "channel", ev.Channel)
	}
}
