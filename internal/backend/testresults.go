package backend

import "strings"

// testResultKeywords mark a record field as test-related. The scan is a
// best-effort filter, not an authoritative test-result feed; it exists only
// because the backend has no dedicated endpoint, and it is kept behind this
// one function so a real endpoint can replace it without touching handlers.
var testResultKeywords = []string{"test", "lab", "result", "scan"}

// ExtractTestResults projects test-related content out of medical records.
// A record contributes one result per field (diagnosis, treatment, notes)
// that mentions a test keyword.
func ExtractTestResults(records []MedicalRecord) []TestResult {
	var results []TestResult
	for _, record := range records {
		fields := []struct {
			source string
			text   string
		}{
			{"diagnosis", record.Diagnosis},
			{"treatment", record.Treatment},
			{"notes", record.Notes},
		}
		for _, field := range fields {
			if !mentionsTest(field.text) {
				continue
			}
			results = append(results, TestResult{
				Date:     record.VisitDate,
				DoctorID: record.DoctorID,
				Summary:  field.text,
				Source:   field.source,
			})
		}
	}
	return results
}

func mentionsTest(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, keyword := range testResultKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
