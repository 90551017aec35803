package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"
)

type batchUpdateRequest struct {
	IDs          []string `json:"ids"`
	SourceLocale string   `json:"sourceLocale"`
}

func (s *Server) handleReport(c echo.Context) error {
	reports, err := s.svc.Report.ContentTypes(c.Request().Context())
	if err != nil {
		return s.respondError(c, err, "Failed to build translation report")
	}
	return success(c, map[string]any{
		"contentTypes": reports,
		"locales":      s.opts.Locales,
	})
}

func (s *Server) handleUpdatedEntries(c echo.Context) error {
	items, err := s.svc.Updates.List(c.Request().Context(), strings.TrimSpace(c.QueryParam("content_type")))
	if err != nil {
		return s.respondError(c, err, "Failed to load updated entries")
	}
	return success(c, map[string]any{
		"items": items,
	})
}

func (s *Server) handleBatchUpdate(c echo.Context) error {
	var req batchUpdateRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	fieldErrors := map[string]string{}
	if len(req.IDs) == 0 {
		fieldErrors["ids"] = "must name at least one updated entry"
	}
	if strings.TrimSpace(req.SourceLocale) == "" {
		fieldErrors["sourceLocale"] = "is required"
	}
	if len(fieldErrors) > 0 {
		return failValidation(c, fieldErrors)
	}

	result, err := s.svc.Updates.Apply(c.Request().Context(), req.IDs, req.SourceLocale)
	if err != nil {
		return s.respondError(c, err, "Failed to apply batch update")
	}
	return success(c, result)
}
