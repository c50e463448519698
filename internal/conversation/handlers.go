package conversation

import (
	"context"
	"fmt"

	"github.com/clinicware/clinic-ai-agent/internal/backend"
	"github.com/clinicware/clinic-ai-agent/internal/intent"
	"github.com/clinicware/clinic-ai-agent/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-agent/internal/session"
	"github.com/clinicware/clinic-ai-agent/pkg/logging"
)

// BackendClient is the slice of the clinic backend used by intent handlers.
// *backend.Client satisfies it; tests substitute fakes.
type BackendClient interface {
	GetPatient(ctx context.Context, patientID string) (*backend.Patient, error)
	FindPatientsByName(ctx context.Context, name string) ([]backend.Patient, error)
	PatientAllergies(ctx context.Context, patientID string) ([]backend.Allergy, error)
	PatientMedications(ctx context.Context, patientID string) ([]backend.Medication, error)
	PatientTestResults(ctx context.Context, patientID string) ([]backend.TestResult, error)
	DoctorSchedule(ctx context.Context, doctorID string) ([]backend.Appointment, error)
	MissedAppointments(ctx context.Context, doctorID string) ([]backend.Appointment, error)
	ListAppointments(ctx context.Context, filters map[string]string) ([]backend.Appointment, error)
	GetDoctor(ctx context.Context, doctorID string) (*backend.Doctor, error)
	ListDoctors(ctx context.Context, skip, limit int) ([]backend.Doctor, error)
}

// turn carries the mutable state threaded through one dispatch.
type turn struct {
	userID  string
	role    session.Role
	params  map[string]string
	matched []backend.Patient
	facts   Facts
	actions []Action
}

type handlerFunc func(ctx context.Context, t *turn)

// Dispatcher owns the role×intent handler registry. It is stateless across
// turns; everything a handler needs arrives through the turn.
type Dispatcher struct {
	backend     BackendClient
	logger      *logging.Logger
	metrics     *metrics.ConversationMetrics
	extractName func(string) string

	handlers map[session.Role]map[intent.Intent]handlerFunc
}

// NewDispatcher builds the handler registry. metrics may be nil.
func NewDispatcher(client BackendClient, logger *logging.Logger, m *metrics.ConversationMetrics) *Dispatcher {
	if client == nil {
		panic("conversation: backend client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	d := &Dispatcher{
		backend:     client,
		logger:      logger,
		metrics:     m,
		extractName: ExtractPatientName,
	}
	d.handlers = map[session.Role]map[intent.Intent]handlerFunc{
		session.RoleClinician: {
			intent.ClinicianPatientInfo:         d.clinicianPatientInfo,
			intent.ClinicianAppointmentSchedule: d.clinicianSchedule,
			intent.ClinicianMissedAppointments:  d.clinicianMissedAppointments,
			intent.ClinicianTestResults:         d.clinicianTestResults,
		},
		session.RolePatient: {
			intent.PatientAppointmentInfo:     d.patientAppointments,
			intent.PatientMedicationInfo:      d.patientMedications,
			intent.PatientTestResults:         d.patientTestResults,
			intent.PatientScheduleAppointment: d.patientScheduleAppointment,
		},
	}
	return d
}

// Dispatch runs the handler for the (role, intent) pair and returns the
// fact bag plus the actions emitted for this turn. Backend failures inside a
// handler are recovered per-call: the specific fact is omitted, an error
// fact is recorded, and the turn proceeds with whatever was gathered.
func (d *Dispatcher) Dispatch(ctx context.Context, in intent.Intent, params map[string]string, userID string, role session.Role, message string) (Facts, []Action) {
	if params == nil {
		params = map[string]string{}
	}
	// Handler-boundary role gate. The classifier already rejects
	// foreign-role intents; a handler must still never run for one.
	if !in.AllowedFor(role) {
		in = intent.Unknown
	}

	t := &turn{
		userID:  userID,
		role:    role,
		params:  params,
		facts:   Facts{},
		actions: []Action{},
	}

	// Best-effort name resolution before role-specific handling.
	if role == session.RoleClinician && params["patient_id"] == "" {
		d.resolvePatientName(ctx, message, t)
	}

	if in.IsGeneral() {
		d.handleGeneral(in, t)
		return t.facts, t.actions
	}

	if handler := d.handlers[role][in]; handler != nil {
		handler(ctx, t)
	}
	return t.facts, t.actions
}

// resolvePatientName guesses a patient name from the message and tries to
// resolve it against the backend. Exactly one match resolves to an id; more
// than one surfaces the candidates without picking; zero is a no-op. This is
// a low-confidence fallback stage, never authoritative identification.
func (d *Dispatcher) resolvePatientName(ctx context.Context, message string, t *turn) {
	name := d.extractName(message)
	if name == "" {
		return
	}

	patients, err := d.backend.FindPatientsByName(ctx, name)
	if err != nil {
		d.logger.Error("patient name resolution failed", "name", name, "error", err)
		return
	}

	switch len(patients) {
	case 0:
	case 1:
		t.params["patient_id"] = patients[0].ID
		t.params["patient_name"] = patients[0].FullName()
	default:
		t.matched = patients
	}
}

func (d *Dispatcher) softFail(t *turn, fetch, what string, err error) {
	d.logger.Error("backend sub-fetch failed", "fetch", fetch, "error", err)
	d.metrics.ObserveBackendSoftFailure(fetch)
	t.facts.AddError(fmt.Sprintf("Could not retrieve %s: %v", what, err))
}

func (d *Dispatcher) clinicianPatientInfo(ctx context.Context, t *turn) {
	patientID := t.params["patient_id"]
	if patientID == "" {
		if len(t.matched) > 1 {
			t.facts.Set(FactMatchedPatients, t.matched)
			t.actions = append(t.actions, Action{Type: ActionDisplayMatchedPatients, Data: t.matched})
		}
		return
	}

	patient, err := d.backend.GetPatient(ctx, patientID)
	if err != nil {
		d.softFail(t, "patient", "patient information", err)
		return
	}
	t.facts.Set(FactPatient, patient)

	var allergies []backend.Allergy
	if allergies, err = d.backend.PatientAllergies(ctx, patientID); err != nil {
		d.softFail(t, "allergies", "allergies", err)
		allergies = nil
	} else {
		t.facts.Set(FactAllergies, allergies)
	}

	var medications []backend.Medication
	if medications, err = d.backend.PatientMedications(ctx, patientID); err != nil {
		d.softFail(t, "medications", "medications", err)
		medications = nil
	} else {
		t.facts.Set(FactMedications, medications)
	}

	t.actions = append(t.actions, Action{
		Type: ActionDisplayPatientInfo,
		Data: map[string]any{
			"basic_info":  patient,
			"allergies":   allergies,
			"medications": medications,
		},
	})
}

func (d *Dispatcher) clinicianSchedule(ctx context.Context, t *turn) {
	schedule, err := d.backend.DoctorSchedule(ctx, t.userID)
	if err != nil {
		d.softFail(t, "schedule", "appointment schedule", err)
		return
	}
	t.facts.Set(FactSchedule, schedule)
	t.actions = append(t.actions, Action{Type: ActionDisplaySchedule, Data: schedule})
}

func (d *Dispatcher) clinicianMissedAppointments(ctx context.Context, t *turn) {
	missed, err := d.backend.MissedAppointments(ctx, t.userID)
	if err != nil {
		d.softFail(t, "missed_appointments", "missed appointments", err)
		return
	}
	t.facts.Set(FactMissedAppointments, missed)
	t.actions = append(t.actions, Action{Type: ActionDisplayMissedAppointments, Data: missed})
}

func (d *Dispatcher) clinicianTestResults(ctx context.Context, t *turn) {
	patientID := t.params["patient_id"]
	if patientID == "" {
		if len(t.matched) > 1 {
			t.facts.Set(FactMatchedPatients, t.matched)
			t.actions = append(t.actions, Action{Type: ActionDisplayMatchedPatients, Data: t.matched})
		}
		return
	}

	results, err := d.backend.PatientTestResults(ctx, patientID)
	if err != nil {
		d.softFail(t, "test_results", "test results", err)
		return
	}
	t.facts.Set(FactTestResults, results)

	patientName := t.params["patient_name"]
	if patient, err := d.backend.GetPatient(ctx, patientID); err != nil {
		d.softFail(t, "patient", "patient information", err)
	} else {
		patientName = patient.FullName()
	}
	if patientName != "" {
		t.facts.Set(FactPatientName, patientName)
	}

	t.actions = append(t.actions, Action{
		Type: ActionDisplayTestResults,
		Data: map[string]any{
			"patient": patientName,
			"results": results,
		},
	})
}

func (d *Dispatcher) patientAppointments(ctx context.Context, t *turn) {
	appointments, err := d.backend.ListAppointments(ctx, map[string]string{"patient_id": t.userID})
	if err != nil {
		d.softFail(t, "appointments", "appointment information", err)
		return
	}

	// Enrich each appointment with doctor details; a failed doctor lookup
	// degrades that one appointment, not the list.
	for i := range appointments {
		if appointments[i].DoctorID == "" {
			continue
		}
		doctor, err := d.backend.GetDoctor(ctx, appointments[i].DoctorID)
		if err != nil {
			d.logger.Error("doctor lookup failed", "doctor_id", appointments[i].DoctorID, "error", err)
			appointments[i].DoctorName = "Unknown"
			continue
		}
		appointments[i].DoctorName = fmt.Sprintf("Dr. %s %s", doctor.FirstName, doctor.LastName)
		appointments[i].DoctorSpecialty = doctor.Specialty
	}

	t.facts.Set(FactAppointments, appointments)
	t.actions = append(t.actions, Action{Type: ActionDisplayAppointments, Data: appointments})
}

func (d *Dispatcher) patientMedications(ctx context.Context, t *turn) {
	medications, err := d.backend.PatientMedications(ctx, t.userID)
	if err != nil {
		d.softFail(t, "medications", "medication information", err)
		return
	}
	t.facts.Set(FactMedications, medications)
	t.actions = append(t.actions, Action{Type: ActionDisplayMedications, Data: medications})
}

func (d *Dispatcher) patientTestResults(ctx context.Context, t *turn) {
	results, err := d.backend.PatientTestResults(ctx, t.userID)
	if err != nil {
		d.softFail(t, "test_results", "test results", err)
		return
	}
	t.facts.Set(FactTestResults, results)
	t.actions = append(t.actions, Action{Type: ActionDisplayTestResults, Data: results})
}

func (d *Dispatcher) patientScheduleAppointment(ctx context.Context, t *turn) {
	doctors, err := d.backend.ListDoctors(ctx, 0, 100)
	if err != nil {
		d.softFail(t, "doctors", "available doctors", err)
		return
	}

	doctorList := make([]map[string]string, 0, len(doctors))
	for _, doctor := range doctors {
		specialty := doctor.Specialty
		if specialty == "" {
			specialty = "General Practice"
		}
		doctorList = append(doctorList, map[string]string{
			"id":        doctor.ID,
			"name":      fmt.Sprintf("Dr. %s %s", doctor.FirstName, doctor.LastName),
			"specialty": specialty,
		})
	}

	t.facts.Set(FactAvailableDoctors, doctorList)
	t.actions = append(t.actions, Action{
		Type: ActionInitiateScheduling,
		Data: map[string]any{
			"message":           "Please provide your preferred date, time, and doctor for the appointment.",
			"available_doctors": doctorList,
		},
	})
}

// handleGeneral covers greeting/farewell/thanks/help/unknown. No backend
// calls are made; the facts only shape the downstream prompt.
func (d *Dispatcher) handleGeneral(in intent.Intent, t *turn) {
	t.facts.Set(FactUserRole, string(t.role))

	if in != intent.Help {
		return
	}
	switch t.role {
	case session.RoleClinician:
		t.facts.Set(FactHelpTopics, []string{
			"Viewing patient information",
			"Checking your appointment schedule",
			"Viewing missed appointments",
			"Accessing test results",
		})
	case session.RolePatient:
		t.facts.Set(FactHelpTopics, []string{
			"Viewing your appointments",
			"Finding information about your medications",
			"Accessing your test results",
			"Scheduling new appointments",
		})
	}
}
