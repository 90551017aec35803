package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntryFilter narrows entry lookups. Empty fields match everything.
type EntryFilter struct {
	ContentType string
	Locale      string
	ID          int64
	GroupID     string
	// MissingLocale keeps entries whose localization group has no entry in that locale.
	MissingLocale string
	// HasLocale keeps entries whose localization group has an entry in that locale.
	HasLocale string
}

// EntryPage bounds ListEntries.
type EntryPage struct {
	Limit  int
	Offset int
}

const localizationExistsSQL = `EXISTS (
	SELECT 1 FROM entries AS loc
	WHERE loc.content_type = entries.content_type
	  AND loc.group_id = entries.group_id
	  AND loc.locale = ?
)`

// DecodeData unmarshals the entry attributes into a plain map.
func (e Entry) DecodeData() (map[string]any, error) {
	data := map[string]any{}
	if len(e.Data) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, fmt.Errorf("decode data for entry %d: %w", e.ID, err)
	}
	return data, nil
}

func EncodeData(data map[string]any) (datatypes.JSON, error) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode entry data: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func (p *Pool) entryQuery(ctx context.Context, filter EntryFilter) *gorm.DB {
	query := p.gdb.WithContext(ctx).Model(&Entry{})
	if ct := strings.TrimSpace(filter.ContentType); ct != "" {
		query = query.Where("entries.content_type = ?", ct)
	}
	if locale := strings.TrimSpace(filter.Locale); locale != "" {
		query = query.Where("entries.locale = ?", locale)
	}
	if filter.ID > 0 {
		query = query.Where("entries.id = ?", filter.ID)
	}
	if group := strings.TrimSpace(filter.GroupID); group != "" {
		query = query.Where("entries.group_id = ?", group)
	}
	if missing := strings.TrimSpace(filter.MissingLocale); missing != "" {
		query = query.Where("NOT "+localizationExistsSQL, missing)
	}
	if has := strings.TrimSpace(filter.HasLocale); has != "" {
		query = query.Where(localizationExistsSQL, has)
	}
	return query
}

func (p *Pool) CountEntries(ctx context.Context, filter EntryFilter) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	var count int64
	if err := p.entryQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// FindEntry returns the first match in id order, or ErrNoRows.
func (p *Pool) FindEntry(ctx context.Context, filter EntryFilter) (*Entry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var entries []Entry
	if err := p.entryQuery(ctx, filter).Order("entries.id ASC").Limit(1).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoRows
	}
	return &entries[0], nil
}

func (p *Pool) FindEntryByID(ctx context.Context, contentType string, id int64) (*Entry, error) {
	if id <= 0 {
		return nil, ErrNoRows
	}
	return p.FindEntry(ctx, EntryFilter{ContentType: contentType, ID: id})
}

func (p *Pool) ListEntries(ctx context.Context, filter EntryFilter, page EntryPage) ([]Entry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	query := p.entryQuery(ctx, filter).Order("entries.id ASC")
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if page.Offset > 0 {
		query = query.Offset(page.Offset)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListLocalizations returns every entry of the group, including the entry itself.
func (p *Pool) ListLocalizations(ctx context.Context, contentType, groupID string) ([]Entry, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, nil
	}
	return p.ListEntries(ctx, EntryFilter{ContentType: contentType, GroupID: groupID}, EntryPage{})
}

func (p *Pool) CreateEntry(ctx context.Context, entry *Entry) (*Entry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if entry == nil {
		return nil, fmt.Errorf("entry is nil")
	}
	if len(entry.Data) == 0 {
		entry.Data = datatypes.JSON("{}")
	}
	if err := p.gdb.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	return entry, nil
}

func (p *Pool) UpdateEntryData(ctx context.Context, id int64, data datatypes.JSON) (*Entry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	res := p.gdb.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Update("data", data)
	if res.Error != nil {
		return nil, fmt.Errorf("update entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoRows
	}
	return p.FindEntry(ctx, EntryFilter{ID: id})
}

func (p *Pool) PublishEntry(ctx context.Context, id int64, at time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	res := p.gdb.WithContext(ctx).
		Model(&Entry{}).
		Where("id = ?", id).
		Update("published_at", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("publish entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

// CountEntriesByLocale returns entry counts per locale for one content type.
func (p *Pool) CountEntriesByLocale(ctx context.Context, contentType string) (map[string]int64, error) {
	rows, err := p.Query(ctx, `
SELECT locale, COUNT(*)
FROM entries
WHERE content_type = ?
GROUP BY locale
`, contentType)
	if err != nil {
		return nil, fmt.Errorf("count entries by locale: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var (
			locale string
			count  int64
		)
		if err := rows.Scan(&locale, &count); err != nil {
			return nil, fmt.Errorf("scan locale count: %w", err)
		}
		counts[locale] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locale counts: %w", err)
	}
	return counts, nil
}

// UIDExists reports whether any entry of the content type stores value under field.
func (p *Pool) UIDExists(ctx context.Context, contentType, field, value string) (bool, error) {
	if p == nil || p.gdb == nil {
		return false, fmt.Errorf("database pool is not initialized")
	}
	var count int64
	err := p.gdb.WithContext(ctx).
		Model(&Entry{}).
		Where("content_type = ?", contentType).
		Where(datatypes.JSONQuery("data").Equals(value, field)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check uid %s.%s: %w", contentType, field, err)
	}
	return count > 0, nil
}

// FindLocalizationID returns the id of the entry in locale that shares a group with id.
func (p *Pool) FindLocalizationID(ctx context.Context, contentType string, id int64, locale string) (int64, bool, error) {
	source, err := p.FindEntryByID(ctx, contentType, id)
	if IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if source.Locale == locale {
		return source.ID, true, nil
	}
	localized, err := p.FindEntry(ctx, EntryFilter{ContentType: contentType, GroupID: source.GroupID, Locale: locale})
	if IsNoRows(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return localized.ID, true, nil
}
