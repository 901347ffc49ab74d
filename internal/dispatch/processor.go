package dispatch

import (
	"context"

	"github.com/FLANsa/clinic-ai-bot/internal/dialogue"
	"github.com/FLANsa/clinic-ai-bot/internal/handoff"
)

// Handler runs the dialogue pipeline for one message.
type Handler interface {
	Handle(ctx context.Context, channel, userID, message string) dialogue.Result
}

// Reply is the transport-facing outcome of a handled job.
type Reply struct {
	JobID        string `json:"job_id,omitempty"`
	Channel      string `json:"channel"`
	UserID       string `json:"user_id"`
	Text         string `json:"reply"`
	Intent       string `json:"intent,omitempty"`
	Unrecognized bool   `json:"unrecognized"`
	NeedsHandoff bool   `json:"needs_handoff"`
	ContextUsed  bool   `json:"db_context_used"`
}

// Processor handles a job and records handoff bookkeeping for it. Both the
// synchronous HTTP path and the queue workers go through it.
type Processor struct {
	handler  Handler
	recorder *handoff.Recorder
}

// NewProcessor wraps handler. recorder may be nil to skip handoff records.
func NewProcessor(handler Handler, recorder *handoff.Recorder) *Processor {
	if handler == nil {
		panic("dispatch: handler required")
	}
	return &Processor{handler: handler, recorder: recorder}
}

func (p *Processor) Process(ctx context.Context, job Job) Reply {
	res := p.handler.Handle(ctx, job.Channel, job.UserID, job.Message)
	if p.recorder != nil {
		p.recorder.Record(context.WithoutCancel(ctx), handoff.Event{
			UserID:       job.UserID,
			Channel:      job.Channel,
			Message:      job.Message,
			Unrecognized: res.Unrecognized,
			NeedsHandoff: res.NeedsHandoff,
		})
	}
	return Reply{
		JobID:        job.ID,
		Channel:      job.Channel,
		UserID:       job.UserID,
		Text:         res.ReplyText,
		Intent:       res.Intent,
		Unrecognized: res.Unrecognized,
		NeedsHandoff: res.NeedsHandoff,
		ContextUsed:  res.ContextUsed,
	}
}
