package batch

import (
	"errors"
	"testing"
)

var allStatuses = []Status{
	StatusCreated, StatusSetup, StatusRunning, StatusPaused,
	StatusCancelled, StatusFinished, StatusFailed,
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, from := range []Status{StatusCancelled, StatusFinished, StatusFailed} {
		if !from.IsTerminal() {
			t.Fatalf("%s.IsTerminal() = false", from)
		}
		for _, to := range allStatuses {
			if err := ValidateTransition(from, to); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("ValidateTransition(%s, %s) error = %v, want ErrInvalidTransition", from, to, err)
			}
		}
	}
}

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusCreated, StatusSetup, true},
		{StatusSetup, StatusRunning, true},
		{StatusRunning, StatusFinished, true},
		{StatusRunning, StatusPaused, true},
		{StatusRunning, StatusSetup, true},
		{StatusPaused, StatusSetup, true},
		{StatusCreated, StatusCancelled, true},
		{StatusSetup, StatusFailed, true},
		{StatusCreated, StatusRunning, false},
		{StatusCreated, StatusFinished, false},
		{StatusSetup, StatusFinished, false},
		{StatusPaused, StatusRunning, false},
		{StatusPaused, StatusCancelled, false},
	}
	for _, tc := range tests {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Fatalf("ValidateTransition(%s, %s) error = %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ValidateTransition(%s, %s) succeeded, want error", tc.from, tc.to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, status := range allStatuses {
		got, err := ParseStatus(" " + string(status) + " ")
		if err != nil || got != status {
			t.Fatalf("ParseStatus(%q) = %q, %v", status, got, err)
		}
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Fatalf("ParseStatus(done) succeeded")
	}
}

func TestStatusGroups(t *testing.T) {
	for _, status := range ActiveStatuses {
		if !status.IsActive() || status.IsStopped() {
			t.Fatalf("%s should be active and not stopped", status)
		}
	}
	if !StatusPaused.IsStopped() || StatusPaused.IsTerminal() || StatusPaused.IsActive() {
		t.Fatalf("paused should be stopped but neither terminal nor active")
	}
}
