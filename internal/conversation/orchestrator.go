package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clinicware/clinic-ai-agent/internal/intent"
	"github.com/clinicware/clinic-ai-agent/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

var (
	// ErrEmptyMessage is returned when a turn arrives without text.
	ErrEmptyMessage = errors.New("conversation: message cannot be empty")
	// ErrMissingIdentity is returned when neither an existing session nor a
	// (user id, role) pair identifies the caller.
	ErrMissingIdentity = errors.New("conversation: user_id and user_role are required to start a session")
	// ErrInvalidRole is returned for a role outside the supported set.
	ErrInvalidRole = errors.New("conversation: user_role must be clinician or patient")
)

// SessionStore is the slice of the session layer the engine uses.
// *session.Store satisfies it.
type SessionStore interface {
	Create(ctx context.Context, userID string, role session.Role) (string, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Update(ctx context.Context, id string, sess *session.Session) error
	AppendHistory(ctx context.Context, id, role, content string) error
	SetMetadata(ctx context.Context, id, key string, value any) error
	Delete(ctx context.Context, id string) (bool, error)
}

// IntentClassifier maps free text to a role-scoped intent. It never fails;
// degradation is expressed as intent.Unknown.
type IntentClassifier interface {
	Classify(ctx context.Context, text string, role session.Role) (intent.Intent, map[string]string)
}

// IntentDispatcher runs the handler for a classified intent.
type IntentDispatcher interface {
	Dispatch(ctx context.Context, in intent.Intent, params map[string]string, userID string, role session.Role, message string) (Facts, []Action)
}

// ReplySynthesizer composes the natural-language reply for a turn.
type ReplySynthesizer interface {
	Synthesize(ctx context.Context, role session.Role, history []session.Message, facts Facts, input string) (string, error)
}

// Engine drives one conversation turn end to end. Stages run strictly in
// sequence; nothing in a turn is concurrent.
type Engine struct {
	sessions    SessionStore
	classifier  IntentClassifier
	dispatcher  IntentDispatcher
	synthesizer ReplySynthesizer
	archive     *session.Archive
	logger      *logging.Logger
	metrics     *metrics.ConversationMetrics
}

// NewEngine wires the turn pipeline. archive and metrics may be nil.
func NewEngine(
	sessions SessionStore,
	classifier IntentClassifier,
	dispatcher IntentDispatcher,
	synthesizer ReplySynthesizer,
	archive *session.Archive,
	logger *logging.Logger,
	m *metrics.ConversationMetrics,
) *Engine {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if classifier == nil {
		panic("conversation: classifier cannot be nil")
	}
	if dispatcher == nil {
		panic("conversation: dispatcher cannot be nil")
	}
	if synthesizer == nil {
		panic("conversation: synthesizer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		sessions:    sessions,
		classifier:  classifier,
		dispatcher:  dispatcher,
		synthesizer: synthesizer,
		archive:     archive,
		logger:      logger,
		metrics:     m,
	}
}

// Chat processes one turn. Committed side effects (appended history,
// refreshed TTL) survive a mid-turn failure; there is no rollback.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := e.resolveSession(ctx, req)
	if err != nil {
		return nil, err
	}
	// The session record is authoritative for identity; request-supplied
	// values only matter at creation time.
	userID, role := sess.UserID, sess.UserRole

	// Snapshot before appending so the reply prompt carries prior turns
	// plus the current input exactly once.
	history := sess.History

	if err := e.sessions.AppendHistory(ctx, sess.ID, session.HistoryRoleUser, message); err != nil {
		e.observeTurn(role, intent.Unknown, "error", start)
		return nil, fmt.Errorf("conversation: record inbound message: %w", err)
	}

	in, params := e.classifier.Classify(ctx, message, role)

	if err := e.sessions.SetMetadata(ctx, sess.ID, session.MetaLastIntent, string(in)); err != nil {
		e.logger.Warn("persisting last intent failed", "session_id", sess.ID, "error", err)
	}
	if err := e.sessions.SetMetadata(ctx, sess.ID, session.MetaIntentParameters, params); err != nil {
		e.logger.Warn("persisting intent parameters failed", "session_id", sess.ID, "error", err)
	}

	facts, actions := e.dispatcher.Dispatch(ctx, in, params, userID, role, message)
	if actions == nil {
		// A turn with nothing to show still serializes as an empty list.
		actions = []Action{}
	}

	text, err := e.synthesizer.Synthesize(ctx, role, history, facts, message)
	if err != nil {
		e.observeTurn(role, in, "error", start)
		return nil, err
	}

	if err := e.sessions.AppendHistory(ctx, sess.ID, session.HistoryRoleAssistant, text); err != nil {
		e.observeTurn(role, in, "error", start)
		return nil, fmt.Errorf("conversation: record reply: %w", err)
	}

	e.archiveTurn(ctx, sess, message, text)
	e.observeTurn(role, in, "ok", start)

	return &ChatResponse{
		Text:      text,
		SessionID: sess.ID,
		Intent:    string(in),
		Actions:   actions,
	}, nil
}

// resolveSession loads the referenced session or starts a new one. A stale
// session id falls back to creation when the request still identifies the
// caller, so long-idle clients recover transparently.
func (e *Engine) resolveSession(ctx context.Context, req ChatRequest) (*session.Session, error) {
	if req.SessionID != "" {
		sess, err := e.sessions.Get(ctx, req.SessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("conversation: load session: %w", err)
		}
		if req.UserID == "" || req.UserRole == "" {
			return nil, fmt.Errorf("conversation: session %s: %w", req.SessionID, session.ErrNotFound)
		}
	}

	if req.UserID == "" || req.UserRole == "" {
		return nil, ErrMissingIdentity
	}
	if !req.UserRole.IsValid() {
		return nil, ErrInvalidRole
	}

	id, err := e.sessions.Create(ctx, req.UserID, req.UserRole)
	if err != nil {
		return nil, fmt.Errorf("conversation: create session: %w", err)
	}
	sess, err := e.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: load created session: %w", err)
	}
	return sess, nil
}

// CreateSession opens a session explicitly, optionally seeding metadata.
func (e *Engine) CreateSession(ctx context.Context, userID string, role session.Role, metadata map[string]any) (string, error) {
	if userID == "" || role == "" {
		return "", ErrMissingIdentity
	}
	if !role.IsValid() {
		return "", ErrInvalidRole
	}

	id, err := e.sessions.Create(ctx, userID, role)
	if err != nil {
		return "", fmt.Errorf("conversation: create session: %w", err)
	}
	for key, value := range metadata {
		if err := e.sessions.SetMetadata(ctx, id, key, value); err != nil {
			return "", fmt.Errorf("conversation: seed session metadata: %w", err)
		}
	}
	return id, nil
}

// GetSession returns the stored session, refreshing its TTL.
func (e *Engine) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return e.sessions.Get(ctx, id)
}

// DeleteSession removes a session; the bool reports whether it existed.
func (e *Engine) DeleteSession(ctx context.Context, id string) (bool, error) {
	return e.sessions.Delete(ctx, id)
}

// archiveTurn copies the turn to the durable transcript. Failures are
// logged, never surfaced; the redis session remains the source of truth for
// the live conversation.
func (e *Engine) archiveTurn(ctx context.Context, sess *session.Session, inbound, outbound string) {
	if e.archive == nil {
		return
	}
	if err := e.archive.EnsureSession(ctx, sess); err != nil {
		e.logger.Warn("archiving session failed", "session_id", sess.ID, "error", err)
		return
	}
	if err := e.archive.AppendMessage(ctx, sess.ID, session.HistoryRoleUser, inbound); err != nil {
		e.logger.Warn("archiving inbound message failed", "session_id", sess.ID, "error", err)
	}
	if err := e.archive.AppendMessage(ctx, sess.ID, session.HistoryRoleAssistant, outbound); err != nil {
		e.logger.Warn("archiving reply failed", "session_id", sess.ID, "error", err)
	}
}

func (e *Engine) observeTurn(role session.Role, in intent.Intent, status string, start time.Time) {
	e.metrics.ObserveTurn(string(role), string(in), status, time.Since(start).Seconds())
}
