package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Error is a typed backend failure with the HTTP status and the message the
// backend embedded in its error envelope.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend: API error (status %d): %s", e.Status, e.Message)
}

// Client talks to the clinic backend REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for the backend client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New creates a clinic backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: BaseURL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	u := c.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("backend: failed to create request: %w", err)
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: failed to decode response: %w", err)
	}
	return nil
}

// decodeError parses the backend's error envelope, falling back to the raw
// body when it is not JSON.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return &Error{Status: resp.StatusCode, Message: envelope.Error.Message}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

// CheckConnection verifies the backend accepts our credentials.
func (c *Client) CheckConnection(ctx context.Context) (bool, error) {
	var result struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/check", nil, nil, &result); err != nil {
		return false, err
	}
	return result.Status == "authenticated", nil
}

// ListPatients returns a page of patients.
func (c *Client) ListPatients(ctx context.Context, skip, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("skip", fmt.Sprint(skip))
	params.Set("limit", fmt.Sprint(limit))

	var patients []Patient
	if err := c.do(ctx, http.MethodGet, "/api/patients", params, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// GetPatient returns a single patient by id.
func (c *Client) GetPatient(ctx context.Context, patientID string) (*Patient, error) {
	var patient Patient
	if err := c.do(ctx, http.MethodGet, "/api/patients/"+patientID, nil, nil, &patient); err != nil {
		return nil, err
	}
	return &patient, nil
}

// CreatePatient registers a new patient.
func (c *Client) CreatePatient(ctx context.Context, patient Patient) (*Patient, error) {
	var created Patient
	if err := c.do(ctx, http.MethodPost, "/api/patients", nil, patient, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// FindPatientsByName matches patients whose first or last name contains the
// given name, case-insensitively. The backend has no search endpoint, so the
// match runs client-side over the patient list. Best-effort identification
// only; callers must not treat a single match as authoritative without
// confirming with the user when in doubt.
func (c *Client) FindPatientsByName(ctx context.Context, name string) ([]Patient, error) {
	patients, err := c.ListPatients(ctx, 0, 100)
	if err != nil {
		return nil, err
	}

	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}

	var matches []Patient
	for _, p := range patients {
		first := strings.ToLower(p.FirstName)
		last := strings.ToLower(p.LastName)
		full := first + " " + last
		if strings.Contains(first, name) || strings.Contains(last, name) || strings.Contains(full, name) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// PatientAllergies returns a patient's recorded allergies.
func (c *Client) PatientAllergies(ctx context.Context, patientID string) ([]Allergy, error) {
	var allergies []Allergy
	if err := c.do(ctx, http.MethodGet, "/api/patients/"+patientID+"/allergies", nil, nil, &allergies); err != nil {
		return nil, err
	}
	return allergies, nil
}

// PatientMedications returns a patient's prescriptions.
func (c *Client) PatientMedications(ctx context.Context, patientID string) ([]Medication, error) {
	var medications []Medication
	if err := c.do(ctx, http.MethodGet, "/api/patients/"+patientID+"/medications", nil, nil, &medications); err != nil {
		return nil, err
	}
	return medications, nil
}

// ListDoctors returns a page of doctors.
func (c *Client) ListDoctors(ctx context.Context, skip, limit int) ([]Doctor, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("skip", fmt.Sprint(skip))
	params.Set("limit", fmt.Sprint(limit))

	var doctors []Doctor
	if err := c.do(ctx, http.MethodGet, "/api/doctors", params, nil, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

// GetDoctor returns a single doctor by id.
func (c *Client) GetDoctor(ctx context.Context, doctorID string) (*Doctor, error) {
	var doctor Doctor
	if err := c.do(ctx, http.MethodGet, "/api/doctors/"+doctorID, nil, nil, &doctor); err != nil {
		return nil, err
	}
	return &doctor, nil
}

// ListAppointments returns appointments matching the given filters
// (patient_id, doctor_id, status, date).
func (c *Client) ListAppointments(ctx context.Context, filters map[string]string) ([]Appointment, error) {
	params := url.Values{}
	for key, value := range filters {
		if value != "" {
			params.Set(key, value)
		}
	}

	var appointments []Appointment
	if err := c.do(ctx, http.MethodGet, "/api/appointments", params, nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// GetAppointment returns a single appointment by id.
func (c *Client) GetAppointment(ctx context.Context, appointmentID string) (*Appointment, error) {
	var appt Appointment
	if err := c.do(ctx, http.MethodGet, "/api/appointments/"+appointmentID, nil, nil, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

// CreateAppointment books a new appointment.
func (c *Client) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	var created Appointment
	if err := c.do(ctx, http.MethodPost, "/api/appointments", nil, appt, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// MissedAppointments returns appointments with status "missed", optionally
// filtered by doctor.
func (c *Client) MissedAppointments(ctx context.Context, doctorID string) ([]Appointment, error) {
	return c.ListAppointments(ctx, map[string]string{
		"status":    "missed",
		"doctor_id": doctorID,
	})
}

// DoctorSchedule returns a doctor's appointments.
func (c *Client) DoctorSchedule(ctx context.Context, doctorID string) ([]Appointment, error) {
	return c.ListAppointments(ctx, map[string]string{"doctor_id": doctorID})
}

// ListMedicalRecords returns medical records, optionally filtered by patient
// or doctor.
func (c *Client) ListMedicalRecords(ctx context.Context, patientID, doctorID string) ([]MedicalRecord, error) {
	params := url.Values{}
	if patientID != "" {
		params.Set("patient_id", patientID)
	}
	if doctorID != "" {
		params.Set("doctor_id", doctorID)
	}

	var records []MedicalRecord
	if err := c.do(ctx, http.MethodGet, "/api/medical-records", params, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateMedicalRecord stores a new visit record.
func (c *Client) CreateMedicalRecord(ctx context.Context, record MedicalRecord) (*MedicalRecord, error) {
	var created MedicalRecord
	if err := c.do(ctx, http.MethodPost, "/api/medical-records", nil, record, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// PatientMedicalHistory returns a patient's records sorted newest first.
func (c *Client) PatientMedicalHistory(ctx context.Context, patientID string) ([]MedicalRecord, error) {
	records, err := c.ListMedicalRecords(ctx, patientID, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].VisitDate > records[j].VisitDate
	})
	return records, nil
}

// PatientTestResults returns the test results derivable from a patient's
// medical records. The backend has no test-result endpoint; this is the
// keyword-scan view implemented by ExtractTestResults.
func (c *Client) PatientTestResults(ctx context.Context, patientID string) ([]TestResult, error) {
	records, err := c.ListMedicalRecords(ctx, patientID, "")
	if err != nil {
		return nil, err
	}
	return ExtractTestResults(records), nil
}

// DoctorPatients returns the unique patients a doctor has appointments with.
// Patients whose lookup fails are skipped.
func (c *Client) DoctorPatients(ctx context.Context, doctorID string) ([]Patient, error) {
	appointments, err := c.ListAppointments(ctx, map[string]string{"doctor_id": doctorID})
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var patients []Patient
	for _, appt := range appointments {
		if appt.PatientID == "" {
			continue
		}
		if _, ok := seen[appt.PatientID]; ok {
			continue
		}
		seen[appt.PatientID] = struct{}{}

		patient, err := c.GetPatient(ctx, appt.PatientID)
		if err != nil {
			continue
		}
		patients = append(patients, *patient)
	}
	return patients, nil
}
