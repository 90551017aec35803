package batch

import (
	"context"
	"time"

	"horse.fit/translator/internal/db"
)

// JobStore persists batch job records. Each Job writes only its own record.
type JobStore interface {
	CreateJob(ctx context.Context, job *db.BatchTranslateJob) (*db.BatchTranslateJob, error)
	FindJobs(ctx context.Context, filter db.JobFilter) ([]db.BatchTranslateJob, error)
	FindJob(ctx context.Context, jobUUID string) (*db.BatchTranslateJob, error)
	UpdateJob(ctx context.Context, jobUUID string, update db.JobUpdate) (*db.BatchTranslateJob, error)
}

// ContentStore reads source entries and stores their translations.
// Lookups that match nothing return db.ErrNoRows.
type ContentStore interface {
	CountEntries(ctx context.Context, filter db.EntryFilter) (int64, error)
	FindEntry(ctx context.Context, filter db.EntryFilter) (*db.Entry, error)
	CreateEntry(ctx context.Context, entry *db.Entry) (*db.Entry, error)
	PublishEntry(ctx context.Context, id int64, at time.Time) error
}

var (
	_ JobStore     = (*db.Pool)(nil)
	_ ContentStore = (*db.Pool)(nil)
	_ EntryLookup  = (*db.Pool)(nil)
)
