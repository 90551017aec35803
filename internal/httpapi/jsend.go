package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/translator/internal/batch"
	"horse.fit/translator/internal/db"
	"horse.fit/translator/internal/schema"
	"horse.fit/translator/internal/translation"
	"horse.fit/translator/internal/updates"
)

type jsendStatus string

const (
	statusSuccess jsendStatus = "success"
	statusFail    jsendStatus = "fail"
	statusError   jsendStatus = "error"
)

type jsendResponse struct {
	Status  jsendStatus `json:"status"`
	Data    any         `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    int         `json:"code,omitempty"`
}

func success(c echo.Context, data any) error {
	return successWithStatus(c, http.StatusOK, data)
}

func successWithStatus(c echo.Context, code int, data any) error {
	return c.JSON(code, jsendResponse{Status: statusSuccess, Data: data})
}

// fail is the client-error envelope; data carries field detail when present.
func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, jsendResponse{Status: statusFail, Message: message, Data: data})
}

func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusBadRequest, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, jsendResponse{
		Status:  statusError,
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}

// clientErrorStatus maps domain errors a caller can act on. Zero means the error
// is ours and becomes a 500.
func clientErrorStatus(err error) int {
	switch {
	case errors.Is(err, batch.ErrJobNotFound),
		errors.Is(err, schema.ErrContentTypeNotFound),
		errors.Is(err, updates.ErrUpdatedEntryNotFound),
		db.IsNoRows(err):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrJobAlreadyExists),
		errors.Is(err, batch.ErrJobNotRunning),
		errors.Is(err, batch.ErrJobAlreadyRunning),
		errors.Is(err, batch.ErrInvalidJobState),
		db.IsDuplicate(err):
		return http.StatusConflict
	case errors.Is(err, batch.ErrContentTypeNotLocalized),
		errors.Is(err, batch.ErrInvalidJobParams),
		errors.Is(err, translation.ErrUnknownProvider):
		return http.StatusBadRequest
	}
	return 0
}

// respondError writes the JSend failure for err and logs anything unexpected.
func (s *Server) respondError(c echo.Context, err error, message string) error {
	if code := clientErrorStatus(err); code != 0 {
		return fail(c, code, err.Error(), nil)
	}
	s.logger.Error().Err(err).Str("path", c.Path()).Msg(message)
	return internalError(c, message)
}
