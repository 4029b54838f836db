package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dhruvsahu007/slackai/internal/api/middleware"
	"github.com/dhruvsahu007/slackai/internal/models"
)

// DirectHistoryResponse represents the conversation between two users.
type DirectHistoryResponse struct {
	UserID   string           `json:"user_id"`
	PeerID   string           `json:"peer_id"`
	Messages []models.Message `json:"messages"`
}

// DirectHistory handles fetching the DM conversation between the
// authenticated user and the user in the path (authenticated).
func (h *Handler) DirectHistory(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	peer, err := h.store.GetUser(r.Context(), peerID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if peer == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	limit := parseLimit(r, 50, 200)

	messages, err := h.store.DirectHistory(r.Context(), user.ID, peerID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, DirectHistoryResponse{
		UserID:   user.ID.String(),
		PeerID:   peerID.String(),
		Messages: messages,
	})
}
