package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FLANsa/clinic-ai-bot/internal/dialogue"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

const maxMessageRunes = 4000

// JobProcessor handles a job inline.
type JobProcessor interface {
	Process(ctx context.Context, job dispatch.Job) dispatch.Reply
}

// JobSubmitter queues a job for the worker pool.
type JobSubmitter interface {
	Submit(ctx context.Context, job dispatch.Job) (string, error)
}

// MessageRequest is an inbound customer message from a channel adapter.
type MessageRequest struct {
	Channel string `json:"channel"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	// Async queues the message; the reply is delivered to the reply sink.
	Async bool `json:"async,omitempty"`
}

// MessagesHandler accepts inbound messages from channel adapters.
type MessagesHandler struct {
	processor JobProcessor
	submitter JobSubmitter
	logger    *logging.Logger
	now       func() time.Time
}

// NewMessagesHandler builds the handler. submitter may be nil, in which case
// async requests are rejected.
func NewMessagesHandler(processor JobProcessor, submitter JobSubmitter, logger *logging.Logger) *MessagesHandler {
	if processor == nil {
		panic("handlers: processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MessagesHandler{processor: processor, submitter: submitter, logger: logger, now: time.Now}
}

// Receive handles one message.
// POST /v1/messages
func (h *MessagesHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Channel = strings.ToLower(strings.TrimSpace(req.Channel))
	req.UserID = strings.TrimSpace(req.UserID)
	req.Message = strings.TrimSpace(req.Message)

	switch {
	case req.UserID == "":
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	case req.Message == "":
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	case !dialogue.KnownChannel(req.Channel):
		jsonError(w, "unsupported channel", http.StatusBadRequest)
		return
	case utf8.RuneCountInString(req.Message) > maxMessageRunes:
		jsonError(w, "message too long", http.StatusRequestEntityTooLarge)
		return
	}

	job := dispatch.Job{
		Channel:    req.Channel,
		UserID:     req.UserID,
		Message:    req.Message,
		ReceivedAt: h.now().UTC(),
	}

	if !req.Async {
		writeJSON(w, http.StatusOK, h.processor.Process(r.Context(), job))
		return
	}

	if h.submitter == nil {
		jsonError(w, "async delivery is not configured", http.StatusNotImplemented)
		return
	}
	jobID, err := h.submitter.Submit(r.Context(), job)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, dispatch.ErrDispatcherClosed) {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("failed to queue message", "channel", req.Channel, "user", logging.RedactID(req.UserID), "error", err)
		jsonError(w, "failed to queue message", status)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}
