package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FLANsa/clinic-ai-bot/internal/handoff"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

const maxHandoffPage = 200

// HandoffsHandler exposes the staff follow-up queue.
type HandoffsHandler struct {
	store  handoff.Store
	logger *logging.Logger
}

func NewHandoffsHandler(store handoff.Store, logger *logging.Logger) *HandoffsHandler {
	if store == nil {
		panic("handlers: handoff store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HandoffsHandler{store: store, logger: logger}
}

// ListOpen returns open handoffs, oldest first.
// GET /admin/handoffs?limit=50
func (h *HandoffsHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHandoffPage)
	}

	open, err := h.store.ListOpen(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list handoffs", "error", err)
		jsonError(w, "failed to list handoffs", http.StatusInternalServerError)
		return
	}
	if open == nil {
		open = []handoff.PendingHandoff{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"handoffs": open, "count": len(open)})
}

// Close marks a handoff as resolved by staff.
// POST /admin/handoffs/{id}/close
func (h *HandoffsHandler) Close(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		jsonError(w, "id is required", http.StatusBadRequest)
		return
	}
	// Handoff ids are UUIDs; anything else cannot match a row.
	if _, err := uuid.Parse(id); err != nil {
		jsonError(w, "handoff not found", http.StatusNotFound)
		return
	}
	if err := h.store.Close(r.Context(), id); err != nil {
		if errors.Is(err, handoff.ErrNotFound) {
			jsonError(w, "handoff not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to close handoff", "handoff_id", id, "error", err)
		jsonError(w, "failed to close handoff", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(handoff.StatusClosed)})
}
