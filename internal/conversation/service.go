package conversation

import "github.com/clinicware/clinic-ai-agent/internal/session"

// Action types emitted by intent handlers. Actions are opaque structured
// payloads for the frontend; the engine passes them through unmodified.
const (
	ActionDisplayPatientInfo        = "display_patient_info"
	ActionDisplayMatchedPatients    = "display_matched_patients"
	ActionDisplaySchedule           = "display_schedule"
	ActionDisplayMissedAppointments = "display_missed_appointments"
	ActionDisplayTestResults        = "display_test_results"
	ActionDisplayAppointments       = "display_appointments"
	ActionDisplayMedications        = "display_medications"
	ActionInitiateScheduling        = "initiate_appointment_scheduling"
)

// Action is a UI-relevant event produced by a handler for the current turn.
type Action struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChatRequest is one inbound conversation turn. UserID and UserRole come
// from the verified caller identity, not the request body, once transport
// auth is enabled; they are only required when no session exists yet.
type ChatRequest struct {
	Message   string       `json:"message"`
	SessionID string       `json:"session_id,omitempty"`
	UserID    string       `json:"user_id,omitempty"`
	UserRole  session.Role `json:"user_role,omitempty"`
}

// ChatResponse is the composed result of one turn.
type ChatResponse struct {
	Text      string   `json:"text"`
	SessionID string   `json:"session_id"`
	Intent    string   `json:"intent"`
	Actions   []Action `json:"actions"`
}

// CreateSessionRequest opens a session explicitly, optionally seeding
// metadata.
type CreateSessionRequest struct {
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateSessionResponse confirms session creation.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}
