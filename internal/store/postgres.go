package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/dhruvsahu007/slackai/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}

	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		api_key TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS channels (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_active_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		message_count BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		author_id UUID NOT NULL REFERENCES users(id),
		channel_id UUID REFERENCES channels(id),
		recipient_id UUID REFERENCES users(id),
		parent_message_id TEXT REFERENCES messages(id),
		analysis JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK ((channel_id IS NULL) <> (recipient_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(author_id, recipient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_message_id, created_at);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateMessage persists a message after validating its references.
func (s *PostgresStore) CreateMessage(ctx context.Context, p CreateMessageParams) (*models.Message, error) {
	if err := validateCreate(p); err != nil {
		return nil, err
	}

	author, err := s.GetUser(ctx, p.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, fmt.Errorf("%w: author %s", ErrNotFound, p.AuthorID)
	}

	if p.ChannelID != nil {
		ch, err := s.GetChannel(ctx, *p.ChannelID)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, fmt.Errorf("%w: channel %s", ErrNotFound, *p.ChannelID)
		}
	} else {
		rcpt, err := s.GetUser(ctx, *p.RecipientID)
		if err != nil {
			return nil, err
		}
		if rcpt == nil {
			return nil, fmt.Errorf("%w: recipient %s", ErrNotFound, *p.RecipientID)
		}
	}

	if p.ParentID != nil {
		var exists int
		err := s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM messages WHERE id = $1`, *p.ParentID).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: parent message %s", ErrNotFound, *p.ParentID)
		}
	}

	msg := &models.Message{
		ID:          ulid.Make().String(),
		Content:     p.Content,
		AuthorID:    p.AuthorID,
		AuthorName:  author.Name,
		ChannelID:   p.ChannelID,
		RecipientID: p.RecipientID,
		ParentID:    p.ParentID,
		CreatedAt:   time.Now().UTC(),
	}
	msg.UpdatedAt = msg.CreatedAt

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, content, author_id, channel_id, recipient_id, parent_message_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.Content, msg.AuthorID, msg.ChannelID, msg.RecipientID, msg.ParentID,
		msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if msg.ChannelID != nil {
		_, err = s.pool.Exec(ctx, `
			UPDATE channels
			SET message_count = message_count + 1, last_active_at = NOW()
			WHERE id = $1
		`, *msg.ChannelID)
		if err != nil {
			return nil, err
		}
	}

	return msg, nil
}

const pgMessageColumns = `m.id, m.content, m.author_id, u.name, m.channel_id, m.recipient_id,
	m.parent_message_id, m.analysis, m.created_at, m.updated_at`

// ChannelHistory returns root messages of a channel ascending by created_at,
// each annotated with its one-level reply list.
func (s *PostgresStore) ChannelHistory(ctx context.Context, channelID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	q := `
		SELECT ` + pgMessageColumns + `
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = $1 AND m.parent_message_id IS NULL`
	args := []interface{}{channelID}
	if !before.IsZero() {
		q += ` AND m.created_at < $2 ORDER BY m.created_at ASC, m.id ASC LIMIT $3`
		args = append(args, before, limit)
	} else {
		q += ` ORDER BY m.created_at ASC, m.id ASC LIMIT $2`
		args = append(args, limit)
	}

	roots, err := s.queryMessages(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return roots, nil
	}

	ids := make([]string, len(roots))
	for i, r := range roots {
		ids[i] = r.ID
	}
	replies, err := s.queryMessages(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.parent_message_id = ANY($1)
		ORDER BY m.created_at ASC, m.id ASC`, ids)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]models.Message, len(ids))
	for _, r := range replies {
		byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
	}
	for i := range roots {
		roots[i].Replies = byParent[roots[i].ID]
	}
	return roots, nil
}

// DirectHistory returns the conversation between two users ascending by
// created_at.
func (s *PostgresStore) DirectHistory(ctx context.Context, userA, userB uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE (m.author_id = $1 AND m.recipient_id = $2)
		   OR (m.author_id = $2 AND m.recipient_id = $1)
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $3
	`, userA, userB, limit)
}

// Thread returns the replies to a root message ascending by created_at.
func (s *PostgresStore) Thread(ctx context.Context, rootID string) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.parent_message_id = $1
		ORDER BY m.created_at ASC, m.id ASC
	`, rootID)
}

// Search performs a scoped substring lookup over message content.
func (s *PostgresStore) Search(ctx context.Context, query string, channelID *uuid.UUID, limit int) ([]models.Message, error) {
	pattern := "%" + escapeLike(query) + "%"
	if channelID != nil {
		return s.queryMessages(ctx, `
			SELECT `+pgMessageColumns+`
			FROM messages m JOIN users u ON u.id = m.author_id
			WHERE m.content ILIKE $1 AND m.channel_id = $2
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $3
		`, pattern, *channelID, limit)
	}
	return s.queryMessages(ctx, `
		SELECT `+pgMessageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.content ILIKE $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2
	`, pattern, limit)
}

// AttachAnalysis stores an opaque analysis blob on an existing message.
func (s *PostgresStore) AttachAnalysis(ctx context.Context, messageID string, analysis json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET analysis = $1, updated_at = NOW() WHERE id = $2
	`, analysis, messageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	return nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, apiKey string) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, api_key)
		VALUES ($1, $2, $3)
		RETURNING id, name, api_key, created_at, updated_at
	`, uuid.New(), name, apiKey).Scan(&u.ID, &u.Name, &u.APIKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, api_key, created_at, updated_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.APIKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUserByAPIKey resolves an opaque API key to a user. Returns (nil, nil)
// when absent.
func (s *PostgresStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	u := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, api_key, created_at, updated_at FROM users WHERE api_key = $1
	`, apiKey).Scan(&u.ID, &u.Name, &u.APIKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// CreateChannel creates a new channel.
func (s *PostgresStore) CreateChannel(ctx context.Context, name string) (*models.Channel, error) {
	ch := &models.Channel{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO channels (id, name)
		VALUES ($1, $2)
		RETURNING id, name, created_at, last_active_at, message_count
	`, uuid.New(), name).Scan(&ch.ID, &ch.Name, &ch.CreatedAt, &ch.LastActiveAt, &ch.MessageCount)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// GetChannel retrieves a channel by ID. Returns (nil, nil) when absent.
func (s *PostgresStore) GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch := &models.Channel{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM channels WHERE id = $1
	`, id).Scan(&ch.ID, &ch.Name, &ch.CreatedAt, &ch.LastActiveAt, &ch.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ch, nil
}

// Stats returns aggregate counts for the stats endpoint.
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&st.TotalUsers); err != nil {
		return nil, err
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM channels`).Scan(&st.TotalChannels); err != nil {
		return nil, err
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.TotalMessages); err != nil {
		return nil, err
	}
	if err := s.pool.QueryRow(ctx, `SELECT MAX(last_active_at) FROM channels`).Scan(&st.LastActivity); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM channels
		ORDER BY message_count DESC, last_active_at DESC
		LIMIT 5
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.CreatedAt, &ch.LastActiveAt, &ch.MessageCount); err != nil {
			return nil, err
		}
		st.TopChannels = append(st.TopChannels, ch)
	}
	return st, rows.Err()
}

// queryMessages runs a message select and scans the rows.
func (s *PostgresStore) queryMessages(ctx context.Context, q string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var analysis []byte

		err := rows.Scan(&m.ID, &m.Content, &m.AuthorID, &m.AuthorName, &m.ChannelID,
			&m.RecipientID, &m.ParentID, &analysis, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if analysis != nil {
			m.Analysis = json.RawMessage(analysis)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
