package handlers

import (
	"net/http"
	"strings"

	"github.com/FLANsa/clinic-ai-bot/internal/dialogue"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
)

const (
	testChatUser    = "test_user"
	testChatChannel = "whatsapp"
)

// TestChatRequest drives the assistant from the admin console.
type TestChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// TestChatResponse mirrors what a customer would see, plus diagnostics flags.
type TestChatResponse struct {
	Reply         string `json:"reply"`
	Intent        string `json:"intent,omitempty"`
	Unrecognized  bool   `json:"unrecognized"`
	NeedsHandoff  bool   `json:"needs_handoff"`
	DBContextUsed bool   `json:"db_context_used"`
}

// TestChatHandler lets staff try the assistant without a messaging channel.
type TestChatHandler struct {
	processor JobProcessor
}

func NewTestChatHandler(processor JobProcessor) *TestChatHandler {
	if processor == nil {
		panic("handlers: processor required")
	}
	return &TestChatHandler{processor: processor}
}

// Chat runs one message through the full pipeline.
// POST /test/chat
func (h *TestChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req TestChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = testChatUser
	}
	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if !dialogue.KnownChannel(channel) {
		channel = testChatChannel
	}

	reply := h.processor.Process(r.Context(), dispatch.Job{Channel: channel, UserID: userID, Message: message})
	writeJSON(w, http.StatusOK, TestChatResponse{
		Reply:         reply.Text,
		Intent:        reply.Intent,
		Unrecognized:  reply.Unrecognized,
		NeedsHandoff:  reply.NeedsHandoff,
		DBContextUsed: reply.ContextUsed,
	})
}
