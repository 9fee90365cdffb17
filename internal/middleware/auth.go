package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
)

const (
	SessionCookieName = "session"
	userContextKey    = "user"
)

// SessionVerifier checks a Firebase session cookie. *auth.Client implements it.
type SessionVerifier interface {
	VerifySessionCookie(ctx context.Context, sessionCookie string) (*auth.Token, error)
}

// UserResolver maps a verified identity to the local user row.
type UserResolver interface {
	Resolve(ctx context.Context, id services.Identity) (*models.User, error)
}

// RequireAuth verifies the session cookie and stores the caller's user in
// the request context. API paths get a JSON 401, pages are redirected to
// the login page.
func RequireAuth(verifier SessionVerifier, users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if verifier == nil {
				return denied(c, "auth_not_configured")
			}

			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return denied(c, "")
			}

			ctx := c.Request().Context()
			token, err := verifier.VerifySessionCookie(ctx, cookie.Value)
			if err != nil {
				zap.S().Debugw("session cookie rejected", "error", err)
				ClearSessionCookie(c)
				return denied(c, "")
			}

			id := services.Identity{UID: token.UID}
			if email, ok := token.Claims["email"].(string); ok {
				id.Email = email
			}
			if name, ok := token.Claims["name"].(string); ok {
				id.Name = name
			}
			if admin, ok := token.Claims["admin"].(bool); ok {
				id.Admin = admin
			}

			user, err := users.Resolve(ctx, id)
			if err != nil {
				return err
			}
			SetUser(c, user)
			return next(c)
		}
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return apperr.AuthenticationRequired("Please log in to continue")
			}
			if !user.IsAdmin() {
				return apperr.Forbidden("Admin access required")
			}
			return next(c)
		}
	}
}

// SetUser stores the authenticated user for downstream handlers.
func SetUser(c echo.Context, user *models.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c echo.Context) *models.User {
	u, _ := c.Get(userContextKey).(*models.User)
	return u
}

func ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})
}

// IsAPI reports whether the request targets the JSON API.
func IsAPI(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func denied(c echo.Context, reason string) error {
	if IsAPI(c) {
		return apperr.AuthenticationRequired("Please log in to continue")
	}
	q := url.Values{}
	q.Set("next", c.Request().URL.RequestURI())
	if reason != "" {
		q.Set("error", reason)
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/login?"+q.Encode())
}
