package handlers

import (
	"net/http"
	"time"
)

// ChannelStats represents stats for a single channel.
type ChannelStats struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MessageCount int64  `json:"message_count"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers    int64          `json:"total_users"`
	TotalChannels int64          `json:"total_channels"`
	TotalMessages int64          `json:"total_messages"`
	LastActivity  string         `json:"last_activity"`
	TopChannels   []ChannelStats `json:"top_channels"`
}

// Stats returns aggregate platform statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	lastActivity := "no activity yet"
	if stats.LastActivity != nil {
		lastActivity = formatTimeAgo(*stats.LastActivity)
	}

	topChannels := make([]ChannelStats, 0, len(stats.TopChannels))
	for _, ch := range stats.TopChannels {
		topChannels = append(topChannels, ChannelStats{
			ID:           ch.ID.String(),
			Name:         ch.Name,
			MessageCount: ch.MessageCount,
		})
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalUsers:    stats.TotalUsers,
		TotalChannels: stats.TotalChannels,
		TotalMessages: stats.TotalMessages,
		LastActivity:  lastActivity,
		TopChannels:   topChannels,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return formatInt(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return formatInt(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return formatInt(days) + " days ago"
	}
}

func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
