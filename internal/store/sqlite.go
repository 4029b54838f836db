package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/dhruvsahu007/slackai/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default backend
// when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/slackai.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/slackai.db"
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}

	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		api_key TEXT UNIQUE NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		message_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		author_id TEXT NOT NULL REFERENCES users(id),
		channel_id TEXT REFERENCES channels(id),
		recipient_id TEXT REFERENCES users(id),
		parent_message_id TEXT REFERENCES messages(id),
		analysis TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK ((channel_id IS NULL) <> (recipient_id IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_users_api_key ON users(api_key);
	CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_direct ON messages(author_id, recipient_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_parent ON messages(parent_message_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateMessage persists a message after validating its references.
func (s *SQLiteStore) CreateMessage(ctx context.Context, p CreateMessageParams) (*models.Message, error) {
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
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM messages WHERE id = ?`, *p.ParentID).Scan(&exists)
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, content, author_id, channel_id, recipient_id, parent_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.Content, msg.AuthorID.String(), uuidPtrString(msg.ChannelID),
		uuidPtrString(msg.RecipientID), msg.ParentID, msg.CreatedAt, msg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if msg.ChannelID != nil {
		_, err = s.db.ExecContext(ctx, `
			UPDATE channels
			SET message_count = message_count + 1, last_active_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, msg.ChannelID.String())
		if err != nil {
			return nil, err
		}
	}

	return msg, nil
}

const messageColumns = `m.id, m.content, m.author_id, u.name, m.channel_id, m.recipient_id,
	m.parent_message_id, m.analysis, m.created_at, m.updated_at`

// ChannelHistory returns root messages of a channel in ascending created_at
// order, each annotated with its one-level reply list. Reply rows are
// excluded from the flat list and appear only nested under their root.
func (s *SQLiteStore) ChannelHistory(ctx context.Context, channelID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = ? AND m.parent_message_id IS NULL`
	args := []interface{}{channelID.String()}
	if !before.IsZero() {
		q += ` AND m.created_at < ?`
		args = append(args, before)
	}
	q += ` ORDER BY m.created_at ASC, m.id ASC LIMIT ?`
	args = append(args, limit)

	roots, err := s.queryMessages(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return roots, nil
	}

	// Attach replies for the whole page in one query.
	ids := make([]string, len(roots))
	placeholders := make([]string, len(roots))
	rargs := make([]interface{}, len(roots))
	for i, r := range roots {
		ids[i] = r.ID
		placeholders[i] = "?"
		rargs[i] = r.ID
	}
	replies, err := s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.parent_message_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY m.created_at ASC, m.id ASC`, rargs...)
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

// DirectHistory returns the conversation between two users in ascending
// created_at order.
func (s *SQLiteStore) DirectHistory(ctx context.Context, userA, userB uuid.UUID, limit int) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE (m.author_id = ? AND m.recipient_id = ?)
		   OR (m.author_id = ? AND m.recipient_id = ?)
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT ?
	`, userA.String(), userB.String(), userB.String(), userA.String(), limit)
}

// Thread returns the replies to a root message in ascending created_at
// order. A root with no replies, or a nonexistent root, yields an empty
// slice rather than an error.
func (s *SQLiteStore) Thread(ctx context.Context, rootID string) ([]models.Message, error) {
	return s.queryMessages(ctx, `
		SELECT `+messageColumns+`
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.parent_message_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`, rootID)
}

// Search performs a scoped substring lookup over message content. No match
// is an empty result, not an error.
func (s *SQLiteStore) Search(ctx context.Context, query string, channelID *uuid.UUID, limit int) ([]models.Message, error) {
	pattern := "%" + escapeLike(query) + "%"
	q := `
		SELECT ` + messageColumns + `
		FROM messages m JOIN users u ON u.id = m.author_id
		WHERE m.content LIKE ? ESCAPE '\'`
	args := []interface{}{pattern}
	if channelID != nil {
		q += ` AND m.channel_id = ?`
		args = append(args, channelID.String())
	}
	q += ` ORDER BY m.created_at DESC, m.id DESC LIMIT ?`
	args = append(args, limit)

	return s.queryMessages(ctx, q, args...)
}

// AttachAnalysis stores an opaque analysis blob on an existing message.
func (s *SQLiteStore) AttachAnalysis(ctx context.Context, messageID string, analysis json.RawMessage) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET analysis = ?, updated_at = ? WHERE id = ?
	`, string(analysis), time.Now().UTC(), messageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: message %s", ErrNotFound, messageID)
	}
	return nil
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, apiKey string) (*models.User, error) {
	u := &models.User{
		ID:        uuid.New(),
		Name:      name,
		APIKey:    apiKey,
		CreatedAt: time.Now().UTC(),
	}
	u.UpdatedAt = u.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, api_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID.String(), u.Name, u.APIKey, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key, created_at, updated_at FROM users WHERE id = ?
	`, id.String()))
}

// GetUserByAPIKey resolves an opaque API key to a user. Returns (nil, nil)
// when absent.
func (s *SQLiteStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, api_key, created_at, updated_at FROM users WHERE api_key = ?
	`, apiKey))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var idStr string
	err := row.Scan(&idStr, &u.Name, &u.APIKey, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.ID = uuid.MustParse(idStr)
	return u, nil
}

// CreateChannel creates a new channel.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name string) (*models.Channel, error) {
	ch := &models.Channel{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	ch.LastActiveAt = ch.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, name, created_at, last_active_at, message_count)
		VALUES (?, ?, ?, ?, 0)
	`, ch.ID.String(), ch.Name, ch.CreatedAt, ch.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// GetChannel retrieves a channel by ID. Returns (nil, nil) when absent.
func (s *SQLiteStore) GetChannel(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	ch := &models.Channel{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, last_active_at, message_count
		FROM channels WHERE id = ?
	`, id.String()).Scan(&idStr, &ch.Name, &ch.CreatedAt, &ch.LastActiveAt, &ch.MessageCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ch.ID = uuid.MustParse(idStr)
	return ch, nil
}

// Stats returns aggregate counts for the stats endpoint.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&st.TotalUsers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&st.TotalChannels); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&st.TotalMessages); err != nil {
		return nil, err
	}
	// Select the column directly: aggregate expressions lose the DATETIME
	// declared type and come back as strings.
	var last time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT last_active_at FROM channels ORDER BY last_active_at DESC LIMIT 1`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		st.LastActivity = &last
	}

	rows, err := s.db.QueryContext(ctx, `
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
		var idStr string
		if err := rows.Scan(&idStr, &ch.Name, &ch.CreatedAt, &ch.LastActiveAt, &ch.MessageCount); err != nil {
			return nil, err
		}
		ch.ID = uuid.MustParse(idStr)
		st.TopChannels = append(st.TopChannels, ch)
	}
	return st, rows.Err()
}

// queryMessages runs a message select and scans the rows.
func (s *SQLiteStore) queryMessages(ctx context.Context, q string, args ...interface{}) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var authorStr string
		var channelStr, recipientStr, parentStr, analysisStr *string

		err := rows.Scan(&m.ID, &m.Content, &authorStr, &m.AuthorName, &channelStr,
			&recipientStr, &parentStr, &analysisStr, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}

		m.AuthorID = uuid.MustParse(authorStr)
		if channelStr != nil {
			id := uuid.MustParse(*channelStr)
			m.ChannelID = &id
		}
		if recipientStr != nil {
			id := uuid.MustParse(*recipientStr)
			m.RecipientID = &id
		}
		m.ParentID = parentStr
		if analysisStr != nil {
			m.Analysis = json.RawMessage(*analysisStr)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// uuidPtrString converts an optional uuid to a nullable column value.
func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// escapeLike escapes LIKE metacharacters in a user-supplied search term.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
