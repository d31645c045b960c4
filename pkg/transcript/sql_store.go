package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/keel/pkg/contracts"
)

// SQLStore implements Store on SQLite or Postgres. The messages table
// declares ON DELETE CASCADE; SQLite needs foreign_keys enabled, which
// the database opener does.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLStore) EnsureSession(ctx context.Context, sessionID string) error {
	query := `INSERT INTO chat_sessions (id, created_at) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	_, err := s.db.ExecContext(ctx, query, sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transcript: ensure session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLStore) AppendMessage(ctx context.Context, sessionID, role, text string, at time.Time) (*Message, error) {
	msg := &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		CreatedAt: at.UTC(),
	}
	query := `INSERT INTO chat_messages (id, session_id, role, text, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.SessionID, msg.Role, msg.Text, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("transcript: append message: %w", err)
	}
	return msg, nil
}

func (s *SQLStore) GetHistory(ctx context.Context, sessionID string) ([]Message, error) {
	query := `
		SELECT id, session_id, role, text, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transcript: history %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLStore) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at FROM chat_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("transcript: list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("transcript: delete session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contracts.ErrSessionNotFound
	}
	return nil
}
