package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"horse.fit/translator/internal/auth"
)

// requireToken checks the bearer token against the configured admin hash.
// With no hash configured every request passes.
func (s *Server) requireToken() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.AdminTokenHash == "" {
				return next(c)
			}
			token, found := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !found || !auth.VerifyToken(token, s.opts.AdminTokenHash) {
				return unauthorizedResponse(c)
			}
			return next(c)
		}
	}
}

func unauthorizedResponse(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return fail(c, http.StatusUnauthorized, "Authentication required", nil)
}
