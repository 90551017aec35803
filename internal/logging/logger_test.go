package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "production", "warn")
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	logger.Info().Msg("hidden")
	componentLogger := Component(logger, "batch_manager")
	componentLogger.Warn().Str("job_id", "j1").Msg("job paused")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var event map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for key, want := range map[string]string{
		"service":   "translator",
		"env":       "production",
		"component": "batch_manager",
		"job_id":    "j1",
		"message":   "job paused",
	} {
		if event[key] != want {
			t.Fatalf("%s = %v, want %q", key, event[key], want)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("local", "loud"); err == nil {
		t.Fatalf("New() error = nil, want parse error")
	}
}

func TestEmptyLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "", "")
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	if !strings.Contains(buf.String(), "shown") || strings.Contains(buf.String(), "hidden") {
		t.Fatalf("output = %q, want only the info event", buf.String())
	}
}
