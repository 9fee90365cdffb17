package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
)

const InternalKeyHeader = "X-Internal-API-Key"

// RequireInternalKey guards the worker-facing API with a shared key. An
// empty configured key rejects every request.
func RequireInternalKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(InternalKeyHeader)
			if key == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				zap.S().Warnw("internal api key rejected",
					"path", c.Request().URL.Path,
					"remote_ip", c.RealIP(),
				)
				return apperr.AuthenticationRequired("Invalid internal API key")
			}
			return next(c)
		}
	}
}
