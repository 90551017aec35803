package updates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/language"
	"horse.fit/translator/internal/metrics"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

var ErrUpdatedEntryNotFound = errors.New("updated entry does not exist")

// EntryTranslator is satisfied by *batch.Translator.
type EntryTranslator interface {
	TranslateEntry(ctx context.Context, params batch.TranslateEntryParams) (map[string]any, error)
}

type Service struct {
	store      Store
	schemas    *schema.Registry
	translator EntryTranslator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewService(store Store, schemas *schema.Registry, translator EntryTranslator, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		store:      store,
		schemas:    schemas,
		translator: translator,
		metrics:    m,
		logger:     logger,
	}
}

// Item is one localization group with stale locales.
type Item struct {
	ID          string    `json:"id"`
	ContentType string    `json:"contentType"`
	GroupID     string    `json:"groupId"`
	Locales     []string  `json:"localesWithUpdates"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (s *Service) List(ctx context.Context, contentType string) ([]Item, error) {
	rows, err := s.store.ListUpdatedEntries(ctx, contentType)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		locales, err := row.Locales()
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ID:          row.UpdatedEntryUUID,
			ContentType: row.ContentType,
			GroupID:     row.GroupID,
			Locales:     locales,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return items, nil
}

type ApplyResult struct {
	Groups       int `json:"groups"`
	Translations int `json:"translations"`
}

// Apply re-translates the stale locales of each updated entry from sourceLocale and
// clears the entry. The first error stops the batch and names the updated entry.
func (s *Service) Apply(ctx context.Context, ids []string, sourceLocale string) (ApplyResult, error) {
	var result ApplyResult
	source := language.NormalizeTag(sourceLocale)
	if source == "" {
		return result, fmt.Errorf("source locale is required")
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		translated, err := s.applyOne(ctx, id, source)
		if err != nil {
			return result, fmt.Errorf("batch update %s: %w", id, err)
		}
		result.Groups++
		result.Translations += translated
	}
	return result, nil
}

func (s *Service) applyOne(ctx context.Context, id, sourceLocale string) (int, error) {
	row, err := s.store.FindUpdatedEntry(ctx, id)
	if db.IsNoRows(err) {
		return 0, ErrUpdatedEntryNotFound
	}
	if err != nil {
		return 0, err
	}
	ct, err := s.schemas.Get(row.ContentType)
	if err != nil {
		return 0, err
	}
	stale, err := row.Locales()
	if err != nil {
		return 0, err
	}
	group, err := s.store.ListLocalizations(ctx, row.ContentType, row.GroupID)
	if err != nil {
		return 0, err
	}

	byLocale := make(map[string]db.Entry, len(group))
	for _, entry := range group {
		byLocale[entry.Locale] = entry
	}
	source, ok := byLocale[sourceLocale]
	if !ok {
		return 0, fmt.Errorf("group has no %s localization", sourceLocale)
	}
	sourceData, err := source.DecodeData()
	if err != nil {
		return 0, err
	}

	translated := 0
	for _, locale := range stale {
		if locale == sourceLocale {
			continue
		}
		target, ok := byLocale[locale]
		if !ok {
			s.logger.Warn().Str("updated_entry", id).Str("locale", locale).Msg("stale localization no longer exists")
			continue
		}
		if err := s.retranslate(ctx, ct, sourceData, sourceLocale, target); err != nil {
			return translated, fmt.Errorf("locale %s: %w", locale, err)
		}
		translated++
		s.metrics.EntryTranslated(ct.UID, "update")
	}

	if err := s.store.DeleteUpdatedEntry(ctx, id); err != nil && !db.IsNoRows(err) {
		return translated, err
	}
	s.logger.Info().Str("updated_entry", id).Int("translations", translated).Msg("applied batch update")
	return translated, nil
}

// retranslate overwrites target's data with a fresh translation. The target keeps its
// id, group, publication state and uid values.
func (s *Service) retranslate(ctx context.Context, ct *schema.ContentType, sourceData map[string]any, sourceLocale string, target db.Entry) error {
	data, err := s.translator.TranslateEntry(ctx, batch.TranslateEntryParams{
		ContentType:  ct.UID,
		Data:         sourceData,
		SourceLocale: sourceLocale,
		TargetLocale: target.Locale,
		Priority:     translation.PriorityBatch,
	})
	if err != nil {
		return err
	}

	current, err := target.DecodeData()
	if err != nil {
		return err
	}
	for name, attr := range ct.Attributes {
		if _, isUID := attr.(schema.UIDAttribute); !isUID {
			continue
		}
		if value, ok := current[name]; ok {
			data[name] = value
		}
	}

	raw, err := db.EncodeData(data)
	if err != nil {
		return err
	}
	if _, err := s.store.UpdateEntryData(ctx, target.ID, raw); err != nil {
		return err
	}
	return nil
}
