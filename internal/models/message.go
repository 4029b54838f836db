package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted chat message. Exactly one of ChannelID or
// RecipientID is set: a channel broadcast or a direct message, never both.
type Message struct {
	ID          string          `json:"id"` // ULID, monotonic
	Content     string          `json:"content"`
	AuthorID    uuid.UUID       `json:"author_id"`
	AuthorName  string          `json:"author_name,omitempty"` // joined from users
	ChannelID   *uuid.UUID      `json:"channel_id,omitempty"`
	RecipientID *uuid.UUID      `json:"recipient_id,omitempty"`
	ParentID    *string         `json:"parent_message_id,omitempty"` // set on replies
	Analysis    json.RawMessage `json:"analysis,omitempty"`          // opaque InsightGenerator output
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Replies is the one-level thread under a root message. Populated only on
	// root rows in channel history, never nested further.
	Replies []Message `json:"replies,omitempty"`
}

// IsDirect reports whether the message is addressed to a single user.
func (m *Message) IsDirect() bool {
	return m.RecipientID != nil
}
