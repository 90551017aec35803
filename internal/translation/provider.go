package translation

import (
	"context"
	"errors"

	"horse.fit/translator/internal/entity"
)

// ErrUsageUnsupported is returned by providers that cannot report quota.
var ErrUsageUnsupported = errors.New("provider does not report usage")

// Priority separates interactive requests from batch work sharing the same limiter.
type Priority string

const (
	PriorityDirect Priority = "direct"
	PriorityBatch  Priority = "batch"
)

// Provider translates text between locales and reports quota.
type Provider interface {
	Name() string
	// Translate returns one translation per input text, in order.
	Translate(ctx context.Context, req TranslateRequest) ([]string, error)
	Usage(ctx context.Context) (*Usage, error)
}

// TranslateRequest describes one provider call. All texts share a format.
type TranslateRequest struct {
	Texts        []string
	SourceLocale string
	TargetLocale string
	Format       entity.Format
	Priority     Priority
}

// Usage is the provider's character quota. Limit is zero when unlimited.
type Usage struct {
	Count int64 `json:"count"`
	Limit int64 `json:"limit"`
}

func characterCount(texts []string) int {
	total := 0
	for _, text := range texts {
		total += len([]rune(text))
	}
	return total
}
