package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dhruvsahu007/slackai/internal/models"
)

// Sentinel errors for the failure taxonomy. Handlers map these onto HTTP
// status codes; everything else is an internal error.
var (
	// ErrValidation covers malformed create-message input: empty content, or
	// both/neither of channel and recipient populated.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers references to nonexistent users, channels or messages.
	ErrNotFound = errors.New("not found")
)

// CreateMessageParams holds the input for MessageStore.CreateMessage.
// Exactly one of ChannelID or RecipientID must be set.
type CreateMessageParams struct {
	Content     string
	AuthorID    uuid.UUID
	ChannelID   *uuid.UUID
	RecipientID *uuid.UUID
	ParentID    *string
}

// Stats holds aggregate counts for the stats endpoint.
type Stats struct {
	TotalUsers    int64
	TotalChannels int64
	TotalMessages int64
	LastActivity  *time.Time
	TopChannels   []models.Channel
}

// MessageStore is the persistence interface for messages and the reference
// entities message writes validate against. Both PostgresStore and
// SQLiteStore implement it.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Message operations
	CreateMessage(ctx context.Context, p CreateMessageParams) (*models.Message, error)
	ChannelHistory(ctx context.Context, channelID uuid.UUID, limit int, before time.Time) ([]models.Message, error)
	DirectHistory(ctx context.Context, userA, userB uuid.UUID, limit int) ([]models.Message, error)
	Thread(ctx context.Context, rootID string) ([]models.Message, error)
	Search(ctx context.Context, query string, channelID *uuid.UUID, limit int) ([]models.Message, error)
	AttachAnalysis(ctx context.Context, messageID string, analysis json.RawMessage) error

	// Reference entities
	CreateUser(ctx context.Context, name, apiKey string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error)
	CreateChannel(ctx context.Context, name string) (*models.Channel, error)
	GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error)

	// Aggregates
	Stats(ctx context.Context) (*Stats, error)
}

// maxContentLen bounds message bodies, matching the HTTP max body size.
const maxContentLen = 4096

// validateCreate checks the create-message invariants shared by both
// implementations.
func validateCreate(p CreateMessageParams) error {
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(p.Content) > maxContentLen {
		return fmt.Errorf("%w: content too long (max %d bytes)", ErrValidation, maxContentLen)
	}
	if (p.ChannelID == nil) == (p.RecipientID == nil) {
		return fmt.Errorf("%w: exactly one of channel_id or recipient_id must be set", ErrValidation)
	}
	return nil
}
