// Package updates tracks localizations that went stale after an edit and
// re-translates them on request.
package updates

import (
	"context"

	"gorm.io/datatypes"

	"horse.fit/translator/internal/db"
)

type Store interface {
	MarkStale(ctx context.Context, contentType, groupID, freshLocale string, staleLocales []string) (*db.UpdatedEntry, error)
	ListUpdatedEntries(ctx context.Context, contentType string) ([]db.UpdatedEntry, error)
	FindUpdatedEntry(ctx context.Context, updatedEntryUUID string) (*db.UpdatedEntry, error)
	DeleteUpdatedEntry(ctx context.Context, updatedEntryUUID string) error
	ListLocalizations(ctx context.Context, contentType, groupID string) ([]db.Entry, error)
	UpdateEntryData(ctx context.Context, id int64, data datatypes.JSON) (*db.Entry, error)
}

var _ Store = (*db.Pool)(nil)
