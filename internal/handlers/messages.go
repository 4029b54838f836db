package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dhruvsahu007/slackai/internal/api/middleware"
	"github.com/dhruvsahu007/slackai/internal/metrics"
	"github.com/dhruvsahu007/slackai/internal/models"
	"github.com/dhruvsahu007/slackai/internal/store"
)

// CreateMessageRequest represents the post message request.
type CreateMessageRequest struct {
	Content     string `json:"content"`
	ChannelID   string `json:"channel_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	ParentID    string `json:"parent_message_id,omitempty"`
}

// HistoryResponse represents a channel history page.
type HistoryResponse struct {
	ChannelID string           `json:"channel_id"`
	Messages  []models.Message `json:"messages"`
	HasMore   bool             `json:"has_more"`
}

// ThreadResponse represents a root message with its replies.
type ThreadResponse struct {
	RootID  string           `json:"root_id"`
	Replies []models.Message `json:"replies"`
}

// CreateMessage handles message creation (authenticated).
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	params := store.CreateMessageParams{
		Content:  req.Content,
		AuthorID: user.ID,
	}
	if req.ChannelID != "" {
		id, err := uuid.Parse(req.ChannelID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid channel ID format")
			return
		}
		params.ChannelID = &id
	}
	if req.RecipientID != "" {
		id, err := uuid.Parse(req.RecipientID)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid recipient ID format")
			return
		}
		params.RecipientID = &id
	}
	if req.ParentID != "" {
		params.ParentID = &req.ParentID
	}

	msg, err := h.store.CreateMessage(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrValidation):
			h.Error(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, store.ErrNotFound):
			h.Error(w, http.StatusNotFound, err.Error())
		default:
			h.Error(w, http.StatusInternalServerError, "failed to create message")
		}
		return
	}

	kind := "channel"
	if msg.IsDirect() {
		kind = "direct"
	}
	metrics.MessagesCreated.WithLabelValues(kind).Inc()

	if h.annotator.Enabled() {
		h.annotator.Annotate(msg.ID, msg.Content)
	}

	h.JSON(w, http.StatusCreated, msg)
}

// ChannelHistory handles fetching a channel's message history. Root messages
// come back in ascending order with replies nested one level deep.
func (h *Handler) ChannelHistory(w http.ResponseWriter, r *http.Request) {
	channelID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid channel ID format")
		return
	}

	channel, err := h.store.GetChannel(r.Context(), channelID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if channel == nil {
		h.Error(w, http.StatusNotFound, "channel not found")
		return
	}

	limit := parseLimit(r, 50, 200)

	var before time.Time
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		before, err = time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
	}

	messages, err := h.store.ChannelHistory(r.Context(), channelID, limit+1, before)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	hasMore := false
	if len(messages) > limit {
		hasMore = true
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []models.Message{}
	}

	h.JSON(w, http.StatusOK, HistoryResponse{
		ChannelID: channelID.String(),
		Messages:  messages,
		HasMore:   hasMore,
	})
}

// Thread handles fetching the replies under a root message.
func (h *Handler) Thread(w http.ResponseWriter, r *http.Request) {
	rootID := chi.URLParam(r, "id")
	if rootID == "" {
		h.Error(w, http.StatusBadRequest, "message ID is required")
		return
	}

	replies, err := h.store.Thread(r.Context(), rootID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, "message not found")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to fetch thread")
		return
	}
	if replies == nil {
		replies = []models.Message{}
	}

	h.JSON(w, http.StatusOK, ThreadResponse{
		RootID:  rootID,
		Replies: replies,
	})
}

// parseLimit reads the limit query param with a default and a cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
