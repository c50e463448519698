package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Archive mirrors session transcripts into PostgreSQL for long-term audit.
// The redis store remains the source of truth for live turns; the archive is
// strictly best-effort and a nil *Archive no-ops everywhere, so the engine
// runs without a database.
type Archive struct {
	db *sql.DB
}

// NewArchive creates a transcript archive. Returns nil when db is nil.
func NewArchive(db *sql.DB) *Archive {
	if db == nil {
		return nil
	}
	return &Archive{db: db}
}

// ArchivedMessage is a transcript row as stored in the database.
type ArchivedMessage struct {
	ID        uuid.UUID
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// EnsureSession creates the archive row for a session if it does not exist
// and bumps its activity timestamp when it does.
func (a *Archive) EnsureSession(ctx context.Context, sess *Session) error {
	if a == nil || a.db == nil {
		return nil
	}

	now := time.Now().UTC()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, user_role, started_at, message_count, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (session_id) DO UPDATE SET updated_at = EXCLUDED.updated_at
	`, sess.ID, sess.UserID, string(sess.UserRole), sess.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("session: failed to ensure archive row: %w", err)
	}
	return nil
}

// AppendMessage persists one transcript message and updates the session
// counter.
func (a *Archive) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if a == nil || a.db == nil {
		return nil
	}

	now := time.Now().UTC()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO session_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), sessionID, role, content, now)
	if err != nil {
		return fmt.Errorf("session: failed to archive message: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		UPDATE sessions SET message_count = message_count + 1, updated_at = $1
		WHERE session_id = $2
	`, now, sessionID)
	if err != nil {
		return fmt.Errorf("session: failed to update archive counters: %w", err)
	}
	return nil
}

// Messages retrieves archived messages for a session in insertion order.
// Unlike the live store, the archive is unbounded.
func (a *Archive) Messages(ctx context.Context, sessionID string, limit int) ([]ArchivedMessage, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, session_id, role, content, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("session: failed to load archived messages: %w", err)
	}
	defer rows.Close()

	var messages []ArchivedMessage
	for rows.Next() {
		var msg ArchivedMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
