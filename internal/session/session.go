package session

import "time"

// Role identifies which kind of user owns a session.
type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

// IsValid reports whether the role is one of the two supported user roles.
func (r Role) IsValid() bool {
	return r == RoleClinician || r == RolePatient
}

// History entry roles.
const (
	HistoryRoleUser      = "user"
	HistoryRoleAssistant = "assistant"
)

// MaxHistoryEntries bounds the per-session transcript. Older entries are
// evicted oldest-first.
const MaxHistoryEntries = 20

// Message is a single entry in a session's conversation history.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the server-side state for one ongoing conversation.
//
// UserID and UserRole are immutable for the session's lifetime; once a
// session exists it is the authoritative source for both, regardless of what
// the caller supplies on later turns.
type Session struct {
	ID        string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	UserRole  Role           `json:"user_role"`
	CreatedAt time.Time      `json:"created_at"`
	History   []Message      `json:"history"`
	Metadata  map[string]any `json:"metadata"`
}

// Reserved metadata keys written by the orchestrator after classification.
const (
	MetaLastIntent       = "last_intent"
	MetaIntentParameters = "intent_parameters"
)
