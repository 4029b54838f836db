package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dhruvsahu007/slackai/internal/metrics"
	"github.com/dhruvsahu007/slackai/internal/models"
)

// SearchResponse represents the search response.
type SearchResponse struct {
	Query   string           `json:"query"`
	Results []models.Message `json:"results"`
	Total   int              `json:"total"`
}

// Search handles the search endpoint. Results are individual messages,
// replies included, newest first; an optional channel filter scopes the
// query.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	limit := parseLimit(r, 20, 100)

	var channelID *uuid.UUID
	if channelStr := r.URL.Query().Get("channel"); channelStr != "" {
		id, err := uuid.Parse(channelStr)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid channel ID format")
			return
		}
		channelID = &id
	}

	metrics.SearchQueries.Inc()

	results, err := h.store.Search(r.Context(), query, channelID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []models.Message{}
	}

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}
