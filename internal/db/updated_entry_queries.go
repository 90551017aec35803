package db

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"gorm.io/datatypes"
)

func (u UpdatedEntry) Locales() ([]string, error) {
	if len(u.LocalesWithUpdates) == 0 {
		return nil, nil
	}
	var locales []string
	if err := json.Unmarshal(u.LocalesWithUpdates, &locales); err != nil {
		return nil, fmt.Errorf("decode locales for updated entry %s: %w", u.UpdatedEntryUUID, err)
	}
	return locales, nil
}

// MarkStale records that the given locales of a group need re-translation and that
// freshLocale no longer does. The row is removed when nothing is left stale.
func (p *Pool) MarkStale(ctx context.Context, contentType, groupID, freshLocale string, staleLocales []string) (*UpdatedEntry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var result *UpdatedEntry
	err := p.InTx(ctx, func(tx *Pool) error {
		var existing []UpdatedEntry
		err := tx.gdb.WithContext(ctx).
			Where("content_type = ? AND group_id = ?", contentType, groupID).
			Limit(1).
			Find(&existing).Error
		if err != nil {
			return fmt.Errorf("query updated entry: %w", err)
		}

		var current []string
		if len(existing) > 0 {
			current, err = existing[0].Locales()
			if err != nil {
				return err
			}
		}
		merged := mergeLocales(current, staleLocales, freshLocale)
		raw, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encode stale locales: %w", err)
		}

		if len(existing) == 0 {
			if len(merged) == 0 {
				return nil
			}
			row := &UpdatedEntry{
				ContentType:        contentType,
				GroupID:            groupID,
				LocalesWithUpdates: datatypes.JSON(raw),
			}
			if err := tx.gdb.WithContext(ctx).Create(row).Error; err != nil {
				return fmt.Errorf("insert updated entry: %w", err)
			}
			result = row
			return nil
		}

		row := existing[0]
		if len(merged) == 0 {
			if err := tx.gdb.WithContext(ctx).Delete(&UpdatedEntry{}, row.ID).Error; err != nil {
				return fmt.Errorf("delete updated entry: %w", err)
			}
			return nil
		}
		row.LocalesWithUpdates = datatypes.JSON(raw)
		if err := tx.gdb.WithContext(ctx).Model(&row).Update("locales_with_updates", row.LocalesWithUpdates).Error; err != nil {
			return fmt.Errorf("update updated entry: %w", err)
		}
		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pool) ListUpdatedEntries(ctx context.Context, contentType string) ([]UpdatedEntry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	query := p.gdb.WithContext(ctx).Model(&UpdatedEntry{}).Order("id ASC")
	if ct := strings.TrimSpace(contentType); ct != "" {
		query = query.Where("content_type = ?", ct)
	}
	var rows []UpdatedEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list updated entries: %w", err)
	}
	return rows, nil
}

func (p *Pool) FindUpdatedEntry(ctx context.Context, updatedEntryUUID string) (*UpdatedEntry, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	var rows []UpdatedEntry
	err := p.gdb.WithContext(ctx).
		Where("updated_entry_uuid = ?", strings.TrimSpace(updatedEntryUUID)).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query updated entry %s: %w", updatedEntryUUID, err)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return &rows[0], nil
}

func (p *Pool) DeleteUpdatedEntry(ctx context.Context, updatedEntryUUID string) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	res := p.gdb.WithContext(ctx).
		Where("updated_entry_uuid = ?", strings.TrimSpace(updatedEntryUUID)).
		Delete(&UpdatedEntry{})
	if res.Error != nil {
		return fmt.Errorf("delete updated entry %s: %w", updatedEntryUUID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func mergeLocales(current, stale []string, fresh string) []string {
	merged := make([]string, 0, len(current)+len(stale))
	for _, locale := range append(slices.Clone(current), stale...) {
		locale = strings.TrimSpace(locale)
		if locale == "" || locale == fresh || slices.Contains(merged, locale) {
			continue
		}
		merged = append(merged, locale)
	}
	slices.Sort(merged)
	return merged
}
