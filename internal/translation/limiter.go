package translation

import (
	"context"

	"golang.org/x/time/rate"
)

// PriorityLimiter paces calls to one provider. Batch calls additionally pass a
// half-rate limiter so direct requests keep headroom while jobs run.
type PriorityLimiter struct {
	shared *rate.Limiter
	batch  *rate.Limiter
}

// NewPriorityLimiter allows rps calls per second overall. rps <= 0 disables limiting.
func NewPriorityLimiter(rps float64) *PriorityLimiter {
	if rps <= 0 {
		return nil
	}
	burst := max(1, int(rps))
	return &PriorityLimiter{
		shared: rate.NewLimiter(rate.Limit(rps), burst),
		batch:  rate.NewLimiter(rate.Limit(rps/2), 1),
	}
}

func (l *PriorityLimiter) Wait(ctx context.Context, priority Priority) error {
	if l == nil {
		return nil
	}
	if priority == PriorityBatch {
		if err := l.batch.Wait(ctx); err != nil {
			return err
		}
	}
	return l.shared.Wait(ctx)
}
