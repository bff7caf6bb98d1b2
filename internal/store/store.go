// Package store persists conversation history in PostgreSQL.
//
// The model is deliberately flat: one append-only chat_messages table
// per user, no session or thread entity. Each user has exactly one
// conversation; deleting it removes every row for that user.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/travo-ai/travo/internal/log"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. SearchData holds the web
// sources an assistant turn was grounded on, nil otherwise.
type Message struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.UUID       `json:"userId"`
	Role       Role            `json:"role"`
	Text       string          `json:"message"`
	SearchData json.RawMessage `json:"webSearchData,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// DB is the subset of pgxpool.Pool the store needs. Defined here so
// tests can substitute a transaction or a fake.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store reads and writes chat_messages.
// Safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger log.Logger
}

// New creates a Store.
func New(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Append inserts a message and returns it with the generated ID and
// timestamp. searchData may be nil.
func (s *Store) Append(ctx context.Context, userID uuid.UUID, role Role, text string, searchData json.RawMessage) (*Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	msg := &Message{
		UserID:     userID,
		Role:       role,
		Text:       text,
		SearchData: searchData,
	}

	var id pgtype.UUID
	var createdAt pgtype.Timestamptz
	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_messages (user_id, role, message, web_search_data)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		uuidToPg(userID), string(role), text, searchData,
	).Scan(&id, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("appending %s message: %w", role, err)
	}

	msg.ID = pgToUUID(id)
	msg.CreatedAt = createdAt.Time
	s.logger.Debug("appended message", "id", msg.ID, "user_id", userID, "role", role)
	return msg, nil
}

// ListRecent returns up to limit messages for the user in ascending
// createdAt order, excluding the message with the given ID. The window
// is anchored at the most recent messages: with 50 stored and limit 20,
// the last 20 are returned, oldest first.
//
// exclude is typically the just-persisted user turn, which is passed to
// the model separately as the current query.
func (s *Store) ListRecent(ctx context.Context, userID uuid.UUID, limit int, exclude uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, role, message, web_search_data, created_at
		 FROM chat_messages
		 WHERE user_id = $1 AND id <> $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		uuidToPg(userID), uuidToPg(exclude), limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent messages: %w", err)
	}

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListAll returns the user's full conversation in ascending createdAt
// order.
func (s *Store) ListAll(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, user_id, role, message, web_search_data, created_at
		 FROM chat_messages
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		uuidToPg(userID))
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return scanMessages(rows)
}

// DeleteAll removes every message for the user and returns the number
// of rows deleted. A concurrent Append can land after the delete; the
// outcome is last-writer-wins and both rows survive.
func (s *Store) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM chat_messages WHERE user_id = $1`, uuidToPg(userID))
	if err != nil {
		return 0, fmt.Errorf("deleting messages: %w", err)
	}

	n := tag.RowsAffected()
	s.logger.Debug("deleted conversation", "user_id", userID, "count", n)
	return n, nil
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var (
			id, userID pgtype.UUID
			role, text string
			searchData []byte
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &userID, &role, &text, &searchData, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, Message{
			ID:         pgToUUID(id),
			UserID:     pgToUUID(userID),
			Role:       Role(role),
			Text:       text,
			SearchData: searchData,
			CreatedAt:  createdAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading messages: %w", err)
	}
	return msgs, nil
}

func uuidToPg(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgToUUID(id pgtype.UUID) uuid.UUID {
	return uuid.UUID(id.Bytes)
}
