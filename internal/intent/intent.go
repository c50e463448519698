package intent

import "github.com/clinicware/clinic-ai-agent/internal/session"

// Intent is a closed symbolic category describing what the user wants.
// Clinician and patient intents are role-scoped; general intents apply to
// both roles.
type Intent string

const (
	// Clinician intents.
	ClinicianPatientInfo         Intent = "clinician_patient_info"
	ClinicianAppointmentSchedule Intent = "clinician_appointment_schedule"
	ClinicianMissedAppointments  Intent = "clinician_missed_appointments"
	ClinicianTestResults         Intent = "clinician_test_results"

	// Patient intents.
	PatientAppointmentInfo     Intent = "patient_appointment_info"
	PatientMedicationInfo      Intent = "patient_medication_info"
	PatientTestResults         Intent = "patient_test_results"
	PatientScheduleAppointment Intent = "patient_schedule_appointment"

	// General intents.
	Greeting Intent = "greeting"
	Farewell Intent = "farewell"
	Thanks   Intent = "thanks"
	Help     Intent = "help"
	Unknown  Intent = "unknown"
)

var clinicianIntents = map[Intent]struct{}{
	ClinicianPatientInfo:         {},
	ClinicianAppointmentSchedule: {},
	ClinicianMissedAppointments:  {},
	ClinicianTestResults:         {},
}

var patientIntents = map[Intent]struct{}{
	PatientAppointmentInfo:     {},
	PatientMedicationInfo:      {},
	PatientTestResults:         {},
	PatientScheduleAppointment: {},
}

var generalIntents = map[Intent]struct{}{
	Greeting: {},
	Farewell: {},
	Thanks:   {},
	Help:     {},
	Unknown:  {},
}

// IsGeneral reports whether the intent applies regardless of role.
func (i Intent) IsGeneral() bool {
	_, ok := generalIntents[i]
	return ok
}

// IsKnown reports whether the string is part of the closed enumeration.
func (i Intent) IsKnown() bool {
	if i.IsGeneral() {
		return true
	}
	if _, ok := clinicianIntents[i]; ok {
		return true
	}
	_, ok := patientIntents[i]
	return ok
}

// AllowedFor reports whether the intent may be produced for the given role.
// Foreign-role intents must degrade to Unknown, even if the classifier
// returns them.
func (i Intent) AllowedFor(role session.Role) bool {
	if i.IsGeneral() {
		return true
	}
	switch role {
	case session.RoleClinician:
		_, ok := clinicianIntents[i]
		return ok
	case session.RolePatient:
		_, ok := patientIntents[i]
		return ok
	default:
		return false
	}
}

// ForRole returns the role-specific intents offered to the classifier for
// this role, in a stable order.
func ForRole(role session.Role) []Intent {
	switch role {
	case session.RoleClinician:
		return []Intent{
			ClinicianPatientInfo,
			ClinicianAppointmentSchedule,
			ClinicianMissedAppointments,
			ClinicianTestResults,
		}
	case session.RolePatient:
		return []Intent{
			PatientAppointmentInfo,
			PatientMedicationInfo,
			PatientTestResults,
			PatientScheduleAppointment,
		}
	default:
		return nil
	}
}

// FollowUpQuestions returns clarifying questions appropriate after the
// recognized intent.
func FollowUpQuestions(i Intent) []string {
	switch i {
	case ClinicianPatientInfo:
		return []string{
			"Which patient would you like information about?",
			"What specific information do you need about this patient?",
		}
	case ClinicianAppointmentSchedule:
		return []string{
			"Which date would you like to check?",
			"Would you like to see all appointments or just specific types?",
		}
	case PatientAppointmentInfo:
		return []string{
			"Would you like to see your upcoming appointments?",
			"Are you looking for a specific appointment?",
		}
	case PatientScheduleAppointment:
		return []string{
			"What type of appointment would you like to schedule?",
			"Do you have a preferred date and time?",
		}
	default:
		return []string{"How can I assist you further?"}
	}
}
