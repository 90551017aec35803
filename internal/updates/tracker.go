package updates

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/schema"
)

// Tracker records which localizations an edit made stale.
type Tracker struct {
	store   Store
	schemas *schema.Registry
	ignored map[string]struct{}
	logger  zerolog.Logger
}

func NewTracker(store Store, schemas *schema.Registry, ignoredContentTypes []string, logger zerolog.Logger) *Tracker {
	ignored := make(map[string]struct{}, len(ignoredContentTypes))
	for _, uid := range ignoredContentTypes {
		if uid = strings.TrimSpace(uid); uid != "" {
			ignored[uid] = struct{}{}
		}
	}
	return &Tracker{store: store, schemas: schemas, ignored: ignored, logger: logger}
}

// Record marks every other locale of the entry's group stale and the entry's own
// locale fresh. Ignored and non-localized content types are skipped.
func (t *Tracker) Record(ctx context.Context, entry *db.Entry) error {
	if t == nil || entry == nil {
		return nil
	}
	if _, skip := t.ignored[entry.ContentType]; skip {
		return nil
	}
	if !t.schemas.IsLocalized(entry.ContentType) {
		return nil
	}

	group, err := t.store.ListLocalizations(ctx, entry.ContentType, entry.GroupID)
	if err != nil {
		return fmt.Errorf("list localizations of entry %d: %w", entry.ID, err)
	}
	stale := make([]string, 0, len(group))
	for _, other := range group {
		if other.Locale != entry.Locale {
			stale = append(stale, other.Locale)
		}
	}

	row, err := t.store.MarkStale(ctx, entry.ContentType, entry.GroupID, entry.Locale, stale)
	if err != nil {
		return fmt.Errorf("record update of entry %d: %w", entry.ID, err)
	}
	if row != nil {
		t.logger.Debug().
			Str("content_type", entry.ContentType).
			Int64("entry_id", entry.ID).
			Strs("stale_locales", stale).
			Msg("recorded stale localizations")
	}
	return nil
}
