package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleType = "api::article.article"

func seedEntry(t *testing.T, pool *Pool, locale, groupID string, data map[string]any) *Entry {
	t.Helper()

	raw, err := EncodeData(data)
	require.NoError(t, err)
	entry, err := pool.CreateEntry(context.Background(), &Entry{
		ContentType: articleType,
		Locale:      locale,
		GroupID:     groupID,
		Data:        raw,
	})
	require.NoError(t, err)
	return entry
}

func TestFindEntryMissingLocale(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	first := seedEntry(t, pool, "en", "", map[string]any{"title": "One"})
	second := seedEntry(t, pool, "en", "", map[string]any{"title": "Two"})
	seedEntry(t, pool, "de", first.GroupID, map[string]any{"title": "Eins"})

	next, err := pool.FindEntry(ctx, EntryFilter{ContentType: articleType, Locale: "en", MissingLocale: "de"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, next.ID)

	translated, err := pool.CountEntries(ctx, EntryFilter{ContentType: articleType, Locale: "en", HasLocale: "de"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), translated)

	total, err := pool.CountEntries(ctx, EntryFilter{ContentType: articleType, Locale: "en"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = pool.FindEntry(ctx, EntryFilter{ContentType: articleType, Locale: "en", MissingLocale: "en"})
	assert.True(t, IsNoRows(err))
}

func TestLocalizationGroupIsUniquePerLocale(t *testing.T) {
	pool := openTestPool(t)

	source := seedEntry(t, pool, "en", "", map[string]any{"title": "One"})
	seedEntry(t, pool, "de", source.GroupID, map[string]any{"title": "Eins"})

	raw, err := EncodeData(map[string]any{"title": "Noch eins"})
	require.NoError(t, err)
	_, err = pool.CreateEntry(context.Background(), &Entry{ContentType: articleType, Locale: "de", GroupID: source.GroupID, Data: raw})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	group, err := pool.ListLocalizations(context.Background(), articleType, source.GroupID)
	require.NoError(t, err)
	assert.Len(t, group, 2)
}

func TestUpdateAndPublishEntry(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	entry := seedEntry(t, pool, "en", "", map[string]any{"title": "Draft"})
	assert.Nil(t, entry.PublishedAt)

	raw, err := EncodeData(map[string]any{"title": "Final"})
	require.NoError(t, err)
	updated, err := pool.UpdateEntryData(ctx, entry.ID, raw)
	require.NoError(t, err)
	data, err := updated.DecodeData()
	require.NoError(t, err)
	assert.Equal(t, "Final", data["title"])

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pool.PublishEntry(ctx, entry.ID, at))
	published, err := pool.FindEntryByID(ctx, articleType, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, published.PublishedAt.Equal(at))

	assert.True(t, IsNoRows(pool.PublishEntry(ctx, 9999, at)))
}

func TestCountEntriesByLocaleAndUIDExists(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	source := seedEntry(t, pool, "en", "", map[string]any{"slug": "hello"})
	seedEntry(t, pool, "en", "", map[string]any{"slug": "world"})
	seedEntry(t, pool, "de", source.GroupID, map[string]any{"slug": "hello-de"})

	counts, err := pool.CountEntriesByLocale(ctx, articleType)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"en": 2, "de": 1}, counts)

	exists, err := pool.UIDExists(ctx, articleType, "slug", "hello-de")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = pool.UIDExists(ctx, articleType, "slug", "world-de")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindLocalizationID(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	source := seedEntry(t, pool, "en", "", map[string]any{"title": "One"})
	german := seedEntry(t, pool, "de", source.GroupID, map[string]any{"title": "Eins"})

	id, found, err := pool.FindLocalizationID(ctx, articleType, source.ID, "de")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, german.ID, id)

	_, found, err = pool.FindLocalizationID(ctx, articleType, source.ID, "fr")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = pool.FindLocalizationID(ctx, articleType, 404, "de")
	require.NoError(t, err)
	assert.False(t, found)
}
