package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a chat user. Credential issuance lives upstream; the core
// only resolves opaque API keys to identities.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
