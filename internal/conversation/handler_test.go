package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/clinic-ai-agent/internal/http/middleware"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

type stubChecker struct{ err error }

func (s *stubChecker) CheckConnection(context.Context) (bool, error) {
	return s.err == nil, s.err
}

func newTestServer(t *testing.T, fx *engineFixture, checker ConnectionChecker) *httptest.Server {
	t.Helper()
	h := NewHandler(fx.engine, checker, logging.New("error"))

	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Post("/api/ai/chat", h.Chat)
	r.Post("/api/ai/sessions", h.CreateSession)
	r.Get("/api/ai/sessions/{sessionID}", h.GetSession)
	r.Delete("/api/ai/sessions/{sessionID}", h.DeleteSession)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestHandlerChat(t *testing.T) {
	fx := newEngineFixture(t)
	srv := newTestServer(t, fx, nil)

	resp := postJSON(t, srv.URL+"/api/ai/chat", ChatRequest{
		Message:  "hello",
		UserID:   "pat-1",
		UserRole: session.RolePatient,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat ChatResponse
	decodeBody(t, resp, &chat)
	assert.Equal(t, "Hello! How can I help you today?", chat.Text)
	assert.NotEmpty(t, chat.SessionID)
}

func TestHandlerChatEmptyActionsSerializeAsList(t *testing.T) {
	fx := newEngineFixture(t)
	srv := newTestServer(t, fx, nil)

	resp := postJSON(t, srv.URL+"/api/ai/chat", ChatRequest{
		Message:  "thanks",
		UserID:   "pat-1",
		UserRole: session.RolePatient,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"actions":[]`)
	assert.NotContains(t, string(body), `"actions":null`)
}

func TestHandlerChatValidationError(t *testing.T) {
	fx := newEngineFixture(t)
	srv := newTestServer(t, fx, nil)

	resp := postJSON(t, srv.URL+"/api/ai/chat", ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Contains(t, body["error"], "user_id and user_role are required")
}

func TestHandlerChatInternalError(t *testing.T) {
	fx := newEngineFixture(t)
	fx.synthesizer.err = errors.New("model unavailable")
	srv := newTestServer(t, fx, nil)

	resp := postJSON(t, srv.URL+"/api/ai/chat", ChatRequest{
		Message:  "hello",
		UserID:   "pat-1",
		UserRole: session.RolePatient,
	})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	// Internal detail must not leak to the client.
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.NotContains(t, body["error"], "model unavailable")
}

func TestHandlerChatVerifiedIdentityOverridesBody(t *testing.T) {
	fx := newEngineFixture(t)
	h := NewHandler(fx.engine, nil, logging.New("error"))

	payload, err := json.Marshal(ChatRequest{
		Message:  "hello",
		UserID:   "intruder",
		UserRole: session.RoleClinician,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", bytes.NewReader(payload))
	req = req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{
		UserID: "pat-1",
		Role:   "patient",
	}))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "pat-1", fx.dispatcher.gotID)
	assert.Equal(t, session.RolePatient, fx.dispatcher.gotRole)
}

func TestHandlerSessionLifecycle(t *testing.T) {
	fx := newEngineFixture(t)
	h := NewHandler(fx.engine, nil, logging.New("error"))

	r := chi.NewRouter()
	r.Post("/api/ai/sessions", h.CreateSession)
	r.Get("/api/ai/sessions/{sessionID}", h.GetSession)
	r.Delete("/api/ai/sessions/{sessionID}", h.DeleteSession)

	ident := middleware.Identity{UserID: "doc-1", Role: "clinician"}

	req := httptest.NewRequest(http.MethodPost, "/api/ai/sessions", bytes.NewReader([]byte(`{"metadata":{"source":"portal"}}`)))
	req = req.WithContext(middleware.WithIdentity(req.Context(), ident))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)

	req = httptest.NewRequest(http.MethodGet, "/api/ai/sessions/"+created.SessionID, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "doc-1", sess.UserID)
	assert.Equal(t, "portal", sess.Metadata["source"])

	req = httptest.NewRequest(http.MethodDelete, "/api/ai/sessions/"+created.SessionID, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/ai/sessions/"+created.SessionID, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateSessionRequiresIdentity(t *testing.T) {
	fx := newEngineFixture(t)
	h := NewHandler(fx.engine, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/api/ai/sessions", nil)
	rec := httptest.NewRecorder()
	h.CreateSession(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDeleteUnknownSession(t *testing.T) {
	fx := newEngineFixture(t)
	srv := newTestServer(t, fx, nil)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/ai/sessions/nope", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerHealth(t *testing.T) {
	fx := newEngineFixture(t)

	srv := newTestServer(t, fx, &stubChecker{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["backend"])

	srv2 := newTestServer(t, fx, &stubChecker{err: errors.New("connection refused")})
	resp, err = http.Get(srv2.URL + "/health")
	require.NoError(t, err)
	var degraded map[string]string
	decodeBody(t, resp, &degraded)
	assert.Equal(t, "degraded", degraded["status"])
	assert.Equal(t, "unreachable", degraded["backend"])
}
