package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)

	logger.Info("should be filtered")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be filtered") {
		t.Fatalf("info line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn line missing: %s", out)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("verbose", &buf)

	logger.Debug("debug line")
	logger.Info("info line")

	out := buf.String()
	if strings.Contains(out, "debug line") {
		t.Fatalf("debug emitted at default level: %s", out)
	}
	if !strings.Contains(out, "info line") {
		t.Fatalf("info missing at default level: %s", out)
	}
}

func TestComponentTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).Component("session")

	logger.Info("created", "session_id", "abc")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if line["component"] != "session" {
		t.Fatalf("expected component=session, got %v", line["component"])
	}
	if line["session_id"] != "abc" {
		t.Fatalf("expected session_id attribute, got %v", line["session_id"])
	}
}
