package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a session does not exist or has expired;
// redis cannot tell the two apart.
var ErrNotFound = errors.New("session: not found")

// DefaultTTL is the sliding expiry applied to every session. Each read
// refreshes it.
const DefaultTTL = 24 * time.Hour

// Store persists sessions in redis under a sliding TTL.
//
// Concurrent turns against the same session race on read-modify-write of
// history and metadata; last write wins. The single-turn contract does not
// depend on stronger guarantees, so no per-session lock is taken.
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a session store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("clinicai.internal.session"),
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

// Create allocates a fresh session for the user and returns its id.
func (s *Store) Create(ctx context.Context, userID string, role Role) (string, error) {
	ctx, span := s.tracer.Start(ctx, "session.create")
	defer span.End()

	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		UserRole:  role,
		CreatedAt: time.Now().UTC(),
		History:   []Message{},
		Metadata:  map[string]any{},
	}

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(id), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("session: failed to persist session: %w", err)
	}
	return id, nil
}

// Get loads a session and refreshes its TTL (keep-alive on touch).
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load session: %w", err)
	}

	// Read extends lifetime.
	if err := s.redis.Expire(ctx, sessionKey(id), s.ttl).Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to refresh TTL: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode session: %w", err)
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]any{}
	}
	return &sess, nil
}

// Update overwrites an existing session. It never creates: a missing or
// expired session yields ErrNotFound, so callers cannot treat update as
// upsert.
func (s *Store) Update(ctx context.Context, id string, sess *Session) error {
	ctx, span := s.tracer.Start(ctx, "session.update")
	defer span.End()

	exists, err := s.redis.Exists(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to check session: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	data, err := json.Marshal(sess)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(id), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist session: %w", err)
	}
	return nil
}

// AppendHistory appends a message to the session transcript, evicting the
// oldest entries beyond MaxHistoryEntries.
func (s *Store) AppendHistory(ctx context.Context, id, role, content string) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	sess.History = append(sess.History, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(sess.History) > MaxHistoryEntries {
		sess.History = sess.History[len(sess.History)-MaxHistoryEntries:]
	}

	return s.Update(ctx, id, sess)
}

// SetMetadata writes a single metadata key. Existing keys are overwritten,
// other keys are untouched.
func (s *Store) SetMetadata(ctx context.Context, id, key string, value any) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.Metadata[key] = value
	return s.Update(ctx, id, sess)
}

// GetMetadata reads a single metadata key. The bool reports whether the key
// was present; a missing key is not an error.
func (s *Store) GetMetadata(ctx context.Context, id, key string) (any, bool, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	value, ok := sess.Metadata[key]
	return value, ok, nil
}

// Delete removes a session. It is idempotent and reports whether anything
// was deleted.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	removed, err := s.redis.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("session: failed to delete session: %w", err)
	}
	return removed > 0, nil
}
