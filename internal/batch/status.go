package batch

import (
	"fmt"
	"strings"
)

// Status is the persisted lifecycle state of a batch translate job.
type Status string

const (
	StatusCreated   Status = "created"
	StatusSetup     Status = "setup"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
)

// ActiveStatuses block a second job for the same content type and locale pair.
var ActiveStatuses = []Status{StatusCreated, StatusSetup, StatusRunning}

// Paused records re-enter through setup when a new Job resumes them.
var transitions = map[Status][]Status{
	StatusCreated: {StatusSetup, StatusPaused, StatusCancelled, StatusFailed},
	StatusSetup:   {StatusRunning, StatusPaused, StatusCancelled, StatusFailed},
	StatusRunning: {StatusSetup, StatusFinished, StatusPaused, StatusCancelled, StatusFailed},
	StatusPaused:  {StatusSetup},
}

// ParseStatus accepts the persisted spelling of a status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusCreated, StatusSetup, StatusRunning, StatusPaused, StatusCancelled, StatusFinished, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusFinished || s == StatusFailed
}

func (s Status) IsActive() bool {
	return s == StatusCreated || s == StatusSetup || s == StatusRunning
}

// IsStopped reports whether a Job in s has nothing left to pause or cancel.
func (s Status) IsStopped() bool {
	return s == StatusPaused || s.IsTerminal()
}

// ValidateTransition refuses moves that are not in the transition table.
func ValidateTransition(from, to Status) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
