// Package dbtest opens throwaway SQLite pools with the production schema.
package dbtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"

	"horse.fit/translator/internal/db"
)

// Open returns a migrated in-memory pool private to the test.
func Open(t testing.TB) *db.Pool {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	pool, err := db.OpenPool(context.Background(), sqlite.Open(dsn), db.PoolOptions{
		LogLevel: "silent",
		MaxConns: 1,
	})
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// SeedEntry stores one entry; an empty groupID starts a new localization group.
func SeedEntry(t testing.TB, pool *db.Pool, contentType, locale, groupID string, data map[string]any) *db.Entry {
	t.Helper()

	raw, err := db.EncodeData(data)
	if err != nil {
		t.Fatalf("encode entry: %v", err)
	}
	entry, err := pool.CreateEntry(context.Background(), &db.Entry{
		ContentType: contentType,
		Locale:      locale,
		GroupID:     groupID,
		Data:        raw,
	})
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	return entry
}
