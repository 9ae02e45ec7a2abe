package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestInitForCLIFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("test", "should not appear")
	Info("test", "should not appear either")
	Warn("test", "this should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("expected debug/info to be filtered out, got %q", out)
	}
	if !strings.Contains(out, "this should appear") {
		t.Errorf("expected warn message to be logged, got %q", out)
	}
}

func TestErrorIncludesErrAttribute(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	Error("test", errBoom{}, "operation failed")

	out := buf.String()
	if !strings.Contains(out, "boom") {
		t.Errorf("expected error text in log output, got %q", out)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func TestTruncateSessionID(t *testing.T) {
	cases := map[string]string{
		"short":                "short",
		"12345678":             "12345678",
		"123456789":            "12345678...",
		"stream-abcdef0123456": "stream-a...",
	}
	for in, want := range cases {
		if got := TruncateSessionID(in); got != want {
			t.Errorf("TruncateSessionID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAuditIncludesActionAndOutcome(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Audit(AuditEvent{Action: "oauth_reconnect", Outcome: "success", Target: "upstream-a"})

	out := buf.String()
	if !strings.Contains(out, "[AUDIT]") || !strings.Contains(out, "action=oauth_reconnect") || !strings.Contains(out, "target=upstream-a") {
		t.Errorf("expected formatted audit line, got %q", out)
	}
}
