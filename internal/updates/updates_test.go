package updates

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db/dbtest"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
)

const articleType = "api::article.article"

const definitions = `{
  "uid": "api::article.article",
  "displayName": "Article",
  "kind": "collectionType",
  "localized": true,
  "attributes": {
    "title": {"type": "string"},
    "slug": {"type": "uid", "targetField": "title"}
  }
}`

const pageDefinition = `{
  "uid": "api::page.page",
  "displayName": "Page",
  "kind": "collectionType",
  "localized": true,
  "attributes": {
    "title": {"type": "string"}
  }
}`

type prefixTranslator struct {
	calls []batch.TranslateEntryParams
	fail  bool
}

func (p *prefixTranslator) TranslateEntry(_ context.Context, params batch.TranslateEntryParams) (map[string]any, error) {
	p.calls = append(p.calls, params)
	if p.fail {
		return nil, errors.New("provider down")
	}
	return map[string]any{
		"title": params.TargetLocale + ":" + params.Data["title"].(string),
		"slug":  "regenerated",
	}, nil
}

func newSchemas(t *testing.T) *schema.Registry {
	t.Helper()
	registry := schema.NewRegistry()
	for _, definition := range []string{definitions, pageDefinition} {
		_, err := registry.Register([]byte(definition))
		require.NoError(t, err)
	}
	return registry
}

func TestTrackerMarksOtherLocalesStale(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	tracker := NewTracker(pool, newSchemas(t), nil, zerolog.Nop())

	en := dbtest.SeedEntry(t, pool, articleType, "en", "", map[string]any{"title": "Hello"})
	de := dbtest.SeedEntry(t, pool, articleType, "de", en.GroupID, map[string]any{"title": "Hallo"})
	dbtest.SeedEntry(t, pool, articleType, "fr", en.GroupID, map[string]any{"title": "Bonjour"})

	require.NoError(t, tracker.Record(ctx, en))
	rows, err := pool.ListUpdatedEntries(ctx, articleType)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	locales, err := rows[0].Locales()
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "fr"}, locales)

	// Editing the German entry makes it fresh and the English source stale.
	require.NoError(t, tracker.Record(ctx, de))
	rows, err = pool.ListUpdatedEntries(ctx, articleType)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	locales, err = rows[0].Locales()
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "fr"}, locales)
}

func TestTrackerSkipsIgnoredAndSingleLocaleGroups(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	tracker := NewTracker(pool, newSchemas(t), []string{"api::page.page"}, zerolog.Nop())

	page := dbtest.SeedEntry(t, pool, "api::page.page", "en", "", map[string]any{"title": "About"})
	dbtest.SeedEntry(t, pool, "api::page.page", "de", page.GroupID, map[string]any{"title": "Über"})
	require.NoError(t, tracker.Record(ctx, page))

	lonely := dbtest.SeedEntry(t, pool, articleType, "en", "", map[string]any{"title": "Alone"})
	require.NoError(t, tracker.Record(ctx, lonely))

	rows, err := pool.ListUpdatedEntries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestApplyRetranslatesStaleLocales(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	schemas := newSchemas(t)
	translator := &prefixTranslator{}
	service := NewService(pool, schemas, translator, nil, zerolog.Nop())
	tracker := NewTracker(pool, schemas, nil, zerolog.Nop())

	en := dbtest.SeedEntry(t, pool, articleType, "en", "", map[string]any{"title": "Hello again", "slug": "hello"})
	de := dbtest.SeedEntry(t, pool, articleType, "de", en.GroupID, map[string]any{"title": "Hallo", "slug": "hallo"})
	require.NoError(t, tracker.Record(ctx, en))

	items, err := service.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"de"}, items[0].Locales)

	result, err := service.Apply(ctx, []string{items[0].ID}, "en")
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Groups: 1, Translations: 1}, result)

	require.Len(t, translator.calls, 1)
	assert.Equal(t, translation.PriorityBatch, translator.calls[0].Priority)
	assert.Equal(t, "de", translator.calls[0].TargetLocale)

	updated, err := pool.FindEntryByID(ctx, articleType, de.ID)
	require.NoError(t, err)
	data, err := updated.DecodeData()
	require.NoError(t, err)
	assert.Equal(t, "de:Hello again", data["title"])
	assert.Equal(t, "hallo", data["slug"])
	assert.Equal(t, de.GroupID, updated.GroupID)

	items, err = service.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplyStopsOnFirstError(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()
	schemas := newSchemas(t)
	service := NewService(pool, schemas, &prefixTranslator{fail: true}, nil, zerolog.Nop())

	en := dbtest.SeedEntry(t, pool, articleType, "en", "", map[string]any{"title": "Hello"})
	dbtest.SeedEntry(t, pool, articleType, "de", en.GroupID, map[string]any{"title": "Hallo"})
	row, err := pool.MarkStale(ctx, articleType, en.GroupID, "en", []string{"de"})
	require.NoError(t, err)

	_, err = service.Apply(ctx, []string{row.UpdatedEntryUUID}, "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), row.UpdatedEntryUUID)

	_, err = pool.FindUpdatedEntry(ctx, row.UpdatedEntryUUID)
	require.NoError(t, err, "failed update must stay listed")

	_, err = service.Apply(ctx, []string{"missing"}, "en")
	assert.ErrorIs(t, err, ErrUpdatedEntryNotFound)
}
