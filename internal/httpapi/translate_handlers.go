package httpapi

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/translation"
)

type translateRequest struct {
	ContentType  string         `json:"contentType"`
	SourceLocale string         `json:"sourceLocale"`
	TargetLocale string         `json:"targetLocale"`
	Provider     string         `json:"provider"`
	Data         map[string]any `json:"data"`
}

type usageResponse struct {
	Provider  string `json:"provider"`
	Count     int64  `json:"count"`
	Limit     int64  `json:"limit"`
	Supported bool   `json:"supported"`
}

func (s *Server) handleTranslate(c echo.Context) error {
	var req translateRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	fieldErrors := map[string]string{}
	if strings.TrimSpace(req.ContentType) == "" {
		fieldErrors["contentType"] = "is required"
	}
	if strings.TrimSpace(req.TargetLocale) == "" {
		fieldErrors["targetLocale"] = "is required"
	}
	if req.Data == nil {
		fieldErrors["data"] = "is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	translated, err := s.svc.Jobs.Translator().TranslateEntry(c.Request().Context(), batch.TranslateEntryParams{
		ContentType:  req.ContentType,
		Data:         req.Data,
		SourceLocale: req.SourceLocale,
		TargetLocale: req.TargetLocale,
		Provider:     req.Provider,
		Priority:     translation.PriorityDirect,
	})
	if err != nil {
		return s.respondError(c, err, "Failed to translate entry")
	}
	s.svc.Metrics.EntryTranslated(req.ContentType, "direct")
	return success(c, map[string]any{
		"data": translated,
	})
}

func (s *Server) handleUsage(c echo.Context) error {
	name, usage, err := s.svc.Entities.Usage(c.Request().Context(), c.QueryParam("provider"))
	if errors.Is(err, translation.ErrUsageUnsupported) || (err == nil && usage == nil) {
		return success(c, usageResponse{Provider: name})
	}
	if err != nil {
		return s.respondError(c, err, "Failed to load provider usage")
	}
	return success(c, usageResponse{
		Provider:  name,
		Count:     usage.Count,
		Limit:     usage.Limit,
		Supported: true,
	})
}

func (s *Server) handleLocales(c echo.Context) error {
	return success(c, map[string]any{
		"items": translation.LocaleOptions(s.opts.Locales),
	})
}
