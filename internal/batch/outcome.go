package batch

import (
	"fmt"

	"horse.fit/translator/internal/db"
)

type OutcomeKind string

const (
	OutcomeFinished  OutcomeKind = "finished"
	OutcomePaused    OutcomeKind = "paused"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is how a Job instance stopped. Pauses and cancellations are expected
// stops and carry no failure.
type Outcome struct {
	Kind    OutcomeKind
	Failure *db.FailureReason
}

func (o Outcome) String() string {
	if o.Kind == OutcomeFailed && o.Failure != nil {
		return fmt.Sprintf("failed on entity %d: %s", o.Failure.EntityID, o.Failure.Message)
	}
	return string(o.Kind)
}

// Err is non-nil only for failed outcomes.
func (o Outcome) Err() error {
	if o.Kind != OutcomeFailed {
		return nil
	}
	if o.Failure == nil {
		return fmt.Errorf("job failed")
	}
	return fmt.Errorf("job failed on entity %d: %s", o.Failure.EntityID, o.Failure.Message)
}
