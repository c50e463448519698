package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing base URL")
	}

	client, err := New(Config{BaseURL: "http://localhost:8000/", APIKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.baseURL != "http://localhost:8000" {
		t.Fatalf("expected trailing slash trimmed, got %s", client.baseURL)
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestGetPatientSendsAPIKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "test-key" {
			t.Errorf("missing api-key header")
		}
		if r.URL.Path != "/api/patients/p1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Patient{ID: "p1", FirstName: "Jane", LastName: "Doe"})
	})

	patient, err := client.GetPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get patient failed: %v", err)
	}
	if patient.FullName() != "Jane Doe" {
		t.Fatalf("unexpected patient: %+v", patient)
	}
}

func TestErrorEnvelopeDecoded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 404, "message": "patient not found"},
		})
	})

	_, err := client.GetPatient(context.Background(), "missing")
	var backendErr *Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if backendErr.Status != http.StatusNotFound || backendErr.Message != "patient not found" {
		t.Fatalf("unexpected error fields: %+v", backendErr)
	}
}

func TestErrorNonJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.ListDoctors(context.Background(), 0, 10)
	var backendErr *Error
	if !errors.As(err, &backendErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if backendErr.Message != "upstream exploded" {
		t.Fatalf("expected raw body as message, got %q", backendErr.Message)
	}
}

func TestFindPatientsByName(t *testing.T) {
	patients := []Patient{
		{ID: "p1", FirstName: "Jane", LastName: "Doe"},
		{ID: "p2", FirstName: "Janet", LastName: "Smith"},
		{ID: "p3", FirstName: "Bob", LastName: "Jones"},
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(patients)
	})

	matches, err := client.FindPatientsByName(context.Background(), "jane")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches for 'jane', got %d", len(matches))
	}

	matches, err = client.FindPatientsByName(context.Background(), "jane doe")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "p1" {
		t.Fatalf("expected exactly Jane Doe, got %v", matches)
	}

	matches, err = client.FindPatientsByName(context.Background(), "   ")
	if err != nil || matches != nil {
		t.Fatalf("expected empty query to match nothing, got %v / %v", matches, err)
	}
}

func TestMissedAppointmentsFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "missed" || q.Get("doctor_id") != "d1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode([]Appointment{{ID: "a1", Status: "missed"}})
	})

	appts, err := client.MissedAppointments(context.Background(), "d1")
	if err != nil {
		t.Fatalf("missed appointments failed: %v", err)
	}
	if len(appts) != 1 || appts[0].ID != "a1" {
		t.Fatalf("unexpected appointments: %v", appts)
	}
}

func TestPatientMedicalHistorySortsNewestFirst(t *testing.T) {
	records := []MedicalRecord{
		{ID: "r1", VisitDate: "2025-01-10"},
		{ID: "r2", VisitDate: "2025-06-02"},
		{ID: "r3", VisitDate: "2024-11-30"},
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(records)
	})

	history, err := client.PatientMedicalHistory(context.Background(), "p1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if history[0].ID != "r2" || history[1].ID != "r1" || history[2].ID != "r3" {
		t.Fatalf("expected newest-first order, got %v", history)
	}
}

func TestDoctorPatientsSkipsFailedLookups(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/appointments":
			json.NewEncoder(w).Encode([]Appointment{
				{ID: "a1", PatientID: "p1"},
				{ID: "a2", PatientID: "p2"},
				{ID: "a3", PatientID: "p1"}, // duplicate patient
			})
		case "/api/patients/p1":
			json.NewEncoder(w).Encode(Patient{ID: "p1", FirstName: "Jane", LastName: "Doe"})
		case "/api/patients/p2":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "gone"}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	patients, err := client.DoctorPatients(context.Background(), "d1")
	if err != nil {
		t.Fatalf("doctor patients failed: %v", err)
	}
	if len(patients) != 1 || patients[0].ID != "p1" {
		t.Fatalf("expected one unique resolvable patient, got %v", patients)
	}
}
