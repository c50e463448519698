package conversation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Well-known fact keys. Handlers may only set these; an unknown key is a
// programming error caught at the handler boundary rather than a typo that
// silently leaks into prompts.
const (
	FactPatient            = "patient"
	FactPatientName        = "patient_name"
	FactAllergies          = "allergies"
	FactMedications        = "medications"
	FactSchedule           = "schedule"
	FactMissedAppointments = "missed_appointments"
	FactTestResults        = "test_results"
	FactAppointments       = "appointments"
	FactAvailableDoctors   = "available_doctors"
	FactMatchedPatients    = "matched_patients"
	FactUserRole           = "user_role"
	FactHelpTopics         = "help_topics"
	FactError              = "error"
)

var wellKnownFactKeys = map[string]struct{}{
	FactPatient:            {},
	FactPatientName:        {},
	FactAllergies:          {},
	FactMedications:        {},
	FactSchedule:           {},
	FactMissedAppointments: {},
	FactTestResults:        {},
	FactAppointments:       {},
	FactAvailableDoctors:   {},
	FactMatchedPatients:    {},
	FactUserRole:           {},
	FactHelpTopics:         {},
	FactError:              {},
}

// Facts is the transient per-turn bag of contextual information assembled by
// handlers for the reply-generation step.
type Facts map[string]any

// Set stores a fact under one of the well-known keys. It panics on an
// unknown key.
func (f Facts) Set(key string, value any) {
	if _, ok := wellKnownFactKeys[key]; !ok {
		panic("conversation: unknown fact key " + key)
	}
	f[key] = value
}

// AddError records a recovered sub-fetch failure. Multiple failures within
// one turn are joined.
func (f Facts) AddError(msg string) {
	if existing, ok := f[FactError].(string); ok && existing != "" {
		f[FactError] = existing + "; " + msg
		return
	}
	f[FactError] = msg
}

// Render serializes the facts into the compact textual encoding appended to
// the generation prompt. Structured values are JSON-encoded; key order is
// deterministic.
func (f Facts) Render() string {
	if len(f) == 0 {
		return ""
	}

	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Context information:\n")
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(renderValue(f[key]))
		b.WriteString("\n")
	}
	return b.String()
}

func renderValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
