package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/globaltime"
	"horse.fit/translator/internal/language"
)

type createEntryRequest struct {
	Locale string `json:"locale"`
	// GroupID adds the entry as a localization of an existing group.
	GroupID string         `json:"groupId"`
	Data    map[string]any `json:"data"`
	Publish bool           `json:"publish"`
}

type updateEntryRequest struct {
	Data map[string]any `json:"data"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	ContentType string         `json:"contentType"`
	GroupID     string         `json:"groupId"`
	Locale      string         `json:"locale"`
	Data        map[string]any `json:"data"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func buildEntryResponse(entry *db.Entry) (entryResponse, error) {
	data, err := entry.DecodeData()
	if err != nil {
		return entryResponse{}, err
	}
	return entryResponse{
		ID:          entry.ID,
		ContentType: entry.ContentType,
		GroupID:     entry.GroupID,
		Locale:      entry.Locale,
		Data:        data,
		PublishedAt: entry.PublishedAt,
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}, nil
}

func (s *Server) handleCreateEntry(c echo.Context) error {
	ct, err := s.svc.Schemas.Get(strings.TrimSpace(c.Param("content_type")))
	if err != nil {
		return s.respondError(c, err, "Failed to load content type")
	}

	var req createEntryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	locale := language.NormalizeTag(req.Locale)
	if ct.Localized && locale == "" {
		return failValidation(c, map[string]string{"locale": "is required for localized content types"})
	}
	if !ct.Localized {
		locale = ""
	}
	raw, err := db.EncodeData(req.Data)
	if err != nil {
		return failValidation(c, map[string]string{"data": err.Error()})
	}

	ctx := c.Request().Context()
	entry, err := s.svc.Content.CreateEntry(ctx, &db.Entry{
		ContentType: ct.UID,
		Locale:      locale,
		GroupID:     strings.TrimSpace(req.GroupID),
		Data:        raw,
	})
	if err != nil {
		return s.respondError(c, err, "Failed to create entry")
	}
	if req.Publish {
		now := globaltime.UTC()
		if err := s.svc.Content.PublishEntry(ctx, entry.ID, now); err != nil {
			return s.respondError(c, err, "Failed to publish entry")
		}
		entry.PublishedAt = &now
	}

	resp, err := buildEntryResponse(entry)
	if err != nil {
		return s.respondError(c, err, "Failed to load entry")
	}
	return successWithStatus(c, http.StatusCreated, resp)
}

func (s *Server) handleGetEntry(c echo.Context) error {
	id, err := parseEntryID(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}
	entry, err := s.svc.Content.FindEntryByID(c.Request().Context(), c.Param("content_type"), id)
	if err != nil {
		return s.respondError(c, err, "Failed to load entry")
	}
	resp, err := buildEntryResponse(entry)
	if err != nil {
		return s.respondError(c, err, "Failed to load entry")
	}
	return success(c, resp)
}

// handleUpdateEntry replaces the entry data and marks the other locales of its group stale.
func (s *Server) handleUpdateEntry(c echo.Context) error {
	id, err := parseEntryID(c.Param("id"))
	if err != nil {
		return failValidation(c, map[string]string{"id": err.Error()})
	}
	var req updateEntryRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if req.Data == nil {
		return failValidation(c, map[string]string{"data": "is required"})
	}

	ctx := c.Request().Context()
	if _, err := s.svc.Content.FindEntryByID(ctx, c.Param("content_type"), id); err != nil {
		return s.respondError(c, err, "Failed to load entry")
	}
	raw, err := db.EncodeData(req.Data)
	if err != nil {
		return failValidation(c, map[string]string{"data": err.Error()})
	}
	entry, err := s.svc.Content.UpdateEntryData(ctx, id, raw)
	if err != nil {
		return s.respondError(c, err, "Failed to update entry")
	}
	if err := s.svc.Tracker.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Int64("entry_id", entry.ID).Str("content_type", entry.ContentType).Msg("failed to record entry update")
	}

	resp, err := buildEntryResponse(entry)
	if err != nil {
		return s.respondError(c, err, "Failed to load entry")
	}
	return success(c, resp)
}
