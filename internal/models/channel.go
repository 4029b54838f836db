package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a named broadcast scope that connections subscribe to.
type Channel struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int64     `json:"message_count"`
}
