package backend

// Patient is a patient record as returned by the clinic backend.
type Patient struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// FullName returns "First Last" for display.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Doctor is a clinician record as returned by the clinic backend.
type Doctor struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Appointment is a scheduled visit.
type Appointment struct {
	ID              string `json:"id"`
	PatientID       string `json:"patient_id"`
	DoctorID        string `json:"doctor_id"`
	DateTime        string `json:"date_time"` // ISO 8601
	DurationMinutes int    `json:"duration,omitempty"`
	Type            string `json:"appointment_type,omitempty"`
	Status          string `json:"status,omitempty"` // scheduled, completed, missed, cancelled
	Notes           string `json:"notes,omitempty"`

	// Enriched client-side for patient-facing views; not part of the
	// backend's own payload.
	DoctorName      string `json:"doctor_name,omitempty"`
	DoctorSpecialty string `json:"doctor_specialty,omitempty"`
}

// MedicalRecord is a visit record.
type MedicalRecord struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	VisitDate string `json:"visit_date"`
	Diagnosis string `json:"diagnosis,omitempty"`
	Treatment string `json:"treatment,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Allergy is a recorded patient allergy.
type Allergy struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

// Medication is an active or past prescription.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	PrescribedBy string `json:"prescribed_by,omitempty"`
}

// TestResult is the normalized projection of test-related content found in
// medical records. The backend has no dedicated test-result endpoint; see
// ExtractTestResults.
type TestResult struct {
	Date     string `json:"date"`
	DoctorID string `json:"doctor_id"`
	Summary  string `json:"summary"`
	Source   string `json:"source"` // which record field matched: diagnosis, treatment, notes
}
