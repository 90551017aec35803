// Package report summarises translation coverage per localized content type.
package report

import (
	"context"
	"fmt"
	"time"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/language"
	"horse.fit/translator/internal/schema"
)

type Store interface {
	CountEntriesByLocale(ctx context.Context, contentType string) (map[string]int64, error)
	FindJobs(ctx context.Context, filter db.JobFilter) ([]db.BatchTranslateJob, error)
}

var _ Store = (*db.Pool)(nil)

type LocaleReport struct {
	Count    int64 `json:"count"`
	Complete bool  `json:"complete"`
}

// JobSummary is the latest job that targeted a locale.
type JobSummary struct {
	ID            string            `json:"id"`
	SourceLocale  string            `json:"sourceLocale"`
	Status        string            `json:"status"`
	Progress      float64           `json:"progress"`
	FailureReason *db.FailureReason `json:"failureReason,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

type ContentTypeReport struct {
	ContentType string                  `json:"contentType"`
	DisplayName string                  `json:"displayName"`
	Locales     map[string]LocaleReport `json:"locales"`
	Jobs        map[string]JobSummary   `json:"jobs"`
}

type Service struct {
	store   Store
	schemas *schema.Registry
	locales []string
}

// NewService reports on the given locales plus any locale found in stored entries.
func NewService(store Store, schemas *schema.Registry, locales []string) *Service {
	normalized := make([]string, 0, len(locales))
	for _, locale := range locales {
		if tag := language.NormalizeTag(locale); tag != "" {
			normalized = append(normalized, tag)
		}
	}
	return &Service{store: store, schemas: schemas, locales: normalized}
}

// ContentTypes reports every localized content type. A locale is complete when it
// has as many entries as the best covered locale of the same content type.
func (s *Service) ContentTypes(ctx context.Context) ([]ContentTypeReport, error) {
	contentTypes := s.schemas.Localized()
	reports := make([]ContentTypeReport, 0, len(contentTypes))
	for _, ct := range contentTypes {
		report, err := s.contentType(ctx, ct)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) contentType(ctx context.Context, ct *schema.ContentType) (ContentTypeReport, error) {
	counts, err := s.store.CountEntriesByLocale(ctx, ct.UID)
	if err != nil {
		return ContentTypeReport{}, fmt.Errorf("report %s: %w", ct.UID, err)
	}
	for _, locale := range s.locales {
		if _, ok := counts[locale]; !ok {
			counts[locale] = 0
		}
	}

	var most int64
	for _, count := range counts {
		most = max(most, count)
	}
	locales := make(map[string]LocaleReport, len(counts))
	for locale, count := range counts {
		locales[locale] = LocaleReport{Count: count, Complete: count == most}
	}

	records, err := s.store.FindJobs(ctx, db.JobFilter{ContentType: ct.UID, NewestFirst: true})
	if err != nil {
		return ContentTypeReport{}, fmt.Errorf("report jobs for %s: %w", ct.UID, err)
	}
	jobs := map[string]JobSummary{}
	for _, record := range records {
		if _, seen := jobs[record.TargetLocale]; seen {
			continue
		}
		reason, err := record.Failure()
		if err != nil {
			return ContentTypeReport{}, err
		}
		jobs[record.TargetLocale] = JobSummary{
			ID:            record.JobUUID,
			SourceLocale:  record.SourceLocale,
			Status:        record.Status,
			Progress:      record.Progress,
			FailureReason: reason,
			UpdatedAt:     record.UpdatedAt,
		}
	}

	return ContentTypeReport{
		ContentType: ct.UID,
		DisplayName: ct.DisplayName,
		Locales:     locales,
		Jobs:        jobs,
	}, nil
}
