package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/clinic-ai-agent/internal/http/middleware"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

// ConnectionChecker reports reachability of the clinic backend.
// *backend.Client satisfies it.
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) (bool, error)
}

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	engine  *Engine
	checker ConnectionChecker
	logger  *logging.Logger
}

// NewHandler creates a conversation handler. checker may be nil, in which
// case the health endpoint only reports liveness.
func NewHandler(engine *Engine, checker ConnectionChecker, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:  engine,
		checker: checker,
		logger:  logger,
	}
}

// Chat handles POST /api/ai/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode chat request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// A verified caller identity always overrides body-supplied identity.
	if ident, ok := middleware.IdentityFromContext(r.Context()); ok {
		req.UserID = ident.UserID
		req.UserRole = session.Role(ident.Role)
	}

	resp, err := h.engine.Chat(r.Context(), req)
	if err != nil {
		h.respondChatError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// CreateSession handles POST /api/ai/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Error("failed to decode session request", "error", err)
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusBadRequest, ErrMissingIdentity.Error())
		return
	}

	id, err := h.engine.CreateSession(r.Context(), ident.UserID, session.Role(ident.Role), req.Metadata)
	if err != nil {
		h.respondChatError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: id,
		Message:   "Session created successfully",
	})
}

// GetSession handles GET /api/ai/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	sess, err := h.engine.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("failed to load session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /api/ai/sessions/{sessionID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	deleted, err := h.engine.DeleteSession(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to delete session", "session_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	if !deleted {
		h.writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

// Health handles GET /health. Backend unreachability degrades the report
// without failing it; the agent itself is still serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	backendStatus := "unknown"
	if h.checker != nil {
		ok, err := h.checker.CheckConnection(r.Context())
		switch {
		case err != nil:
			h.logger.Warn("backend connection check failed", "error", err)
			status = "degraded"
			backendStatus = "unreachable"
		case !ok:
			status = "degraded"
			backendStatus = "unauthenticated"
		default:
			backendStatus = "connected"
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"backend": backendStatus,
	})
}

func (h *Handler) respondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrMissingIdentity), errors.Is(err, ErrInvalidRole):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "Session not found")
	default:
		h.logger.Error("chat turn failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
