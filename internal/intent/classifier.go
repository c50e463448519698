package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/clinicware/clinic-ai-agent/internal/llm"
	"github.com/clinicware/clinic-ai-agent/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

// intent descriptions fed to the classification prompt.
var intentDescriptions = map[Intent]string{
	ClinicianPatientInfo:         "Clinician wants information about a patient",
	ClinicianAppointmentSchedule: "Clinician wants to view their appointment schedule",
	ClinicianMissedAppointments:  "Clinician wants to see missed appointments",
	ClinicianTestResults:         "Clinician wants to see patient test results",
	PatientAppointmentInfo:       "Patient wants information about their appointments",
	PatientMedicationInfo:        "Patient wants information about their medications",
	PatientTestResults:           "Patient wants to see their test results",
	PatientScheduleAppointment:   "Patient wants to schedule an appointment",
	Greeting:                     "User is greeting the system",
	Farewell:                     "User is saying goodbye",
	Thanks:                       "User is expressing gratitude",
	Help:                         "User needs help with using the system",
	Unknown:                      "Intent cannot be determined",
}

// Classifier maps free text plus a role to a symbolic intent and extracted
// parameters using a single text-classification call.
type Classifier struct {
	client  llm.Client
	logger  *logging.Logger
	metrics *metrics.ConversationMetrics
}

// NewClassifier creates an LLM-backed intent classifier. metrics may be nil.
func NewClassifier(client llm.Client, logger *logging.Logger, m *metrics.ConversationMetrics) *Classifier {
	if client == nil {
		panic("intent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{client: client, logger: logger, metrics: m}
}

// Classify determines the user's intent. It never fails: malformed payloads,
// out-of-enumeration intents, foreign-role intents, and call errors all
// degrade to (Unknown, empty). A single attempt is made; no retries.
func (c *Classifier) Classify(ctx context.Context, text string, role session.Role) (Intent, map[string]string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown, map[string]string{}
	}

	resp, err := c.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: c.systemPrompt(role)},
			{Role: llm.RoleUser, Content: text},
		},
		Temperature: 0, // dispatch branches on exact intent equality
		MaxTokens:   300,
	})
	if err != nil {
		c.logger.Error("intent classification call failed", "error", err, "role", string(role))
		c.metrics.ObserveClassifierFallback("call_failed")
		return Unknown, map[string]string{}
	}

	result, ok := parseClassification(resp.Text)
	if !ok {
		c.logger.Warn("intent classification payload malformed", "role", string(role))
		c.metrics.ObserveClassifierFallback("malformed_payload")
		return Unknown, map[string]string{}
	}

	if result.Intent == "" {
		c.logger.Warn("intent classification payload missing intent field", "role", string(role))
		c.metrics.ObserveClassifierFallback("missing_intent")
		return Unknown, map[string]string{}
	}

	parsed := Intent(result.Intent)
	if !parsed.IsKnown() {
		c.logger.Warn("classifier returned unknown intent string", "intent", result.Intent)
		c.metrics.ObserveClassifierFallback("outside_enumeration")
		return Unknown, map[string]string{}
	}
	// The prompt only offers role-appropriate intents, but the model is
	// not trusted to honor that.
	if !parsed.AllowedFor(role) {
		c.logger.Warn("classifier returned foreign-role intent", "intent", result.Intent, "role", string(role))
		c.metrics.ObserveClassifierFallback("foreign_role")
		return Unknown, map[string]string{}
	}

	return parsed, stringifyParameters(result.Parameters)
}

func (c *Classifier) systemPrompt(role session.Role) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an intent recognition system for a medical clinic AI assistant.\n")
	fmt.Fprintf(&b, "The user is a %s interacting with the system.\n\n", role)
	b.WriteString("Analyze the user's input and determine their intent based on the following options:\n\n")

	for _, i := range ForRole(role) {
		fmt.Fprintf(&b, "- %s: %s\n", i, intentDescriptions[i])
	}
	b.WriteString("\nGeneral intents:\n")
	for _, i := range []Intent{Greeting, Farewell, Thanks, Help, Unknown} {
		fmt.Fprintf(&b, "- %s: %s\n", i, intentDescriptions[i])
	}

	b.WriteString(`
Also extract any parameters from the input, such as:
- patient_id: If a specific patient is mentioned
- appointment_id: If a specific appointment is mentioned
- date: If a specific date is mentioned
- test_type: If a specific type of test is mentioned

Respond with JSON only, containing:
1. "intent": One of the intent options listed above
2. "parameters": An object containing extracted parameters
3. "confidence": A value from 0.0 to 1.0 indicating confidence level
`)
	return b.String()
}

type classification struct {
	Intent     string         `json:"intent"`
	Parameters map[string]any `json:"parameters"`
}

// parseClassification extracts the JSON object from the model output. The
// model might wrap the object in extra prose, so only the outermost braces
// are considered.
func parseClassification(content string) (classification, bool) {
	content = strings.TrimSpace(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return classification{}, false
	}

	var result classification
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return classification{}, false
	}
	return result, true
}

// stringifyParameters flattens scalar parameter values to strings and drops
// structured ones; slot values (patient_id, date, ...) are scalar by
// contract.
func stringifyParameters(params map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			if v != "" {
				out[key] = v
			}
		case float64:
			out[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}
