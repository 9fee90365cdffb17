package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/middleware"
	"agency_portal_echo/web/pages"
)

const sessionTTL = 5 * 24 * time.Hour

// SessionMinter exchanges a Firebase ID token for a session cookie.
// *auth.Client implements it.
type SessionMinter interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
}

// FirebaseWebConfig is handed to the login page's JS SDK.
type FirebaseWebConfig struct {
	APIKey     string
	AuthDomain string
	ProjectID  string
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	minter       SessionMinter
	web          FirebaseWebConfig
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. minter may be nil when Firebase
// is not configured; login then fails with 401.
func NewAuthHandler(minter SessionMinter, web FirebaseWebConfig, secureCookie bool) *AuthHandler {
	return &AuthHandler{minter: minter, web: web, secureCookie: secureCookie}
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(c echo.Context) error {
	next := c.QueryParam("next")
	// only local redirects
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = ""
	}
	props := pages.LoginProps{
		FirebaseAPIKey:     h.web.APIKey,
		FirebaseAuthDomain: h.web.AuthDomain,
		FirebaseProjectID:  h.web.ProjectID,
		Next:               next,
	}
	return render(c, http.StatusOK, pages.Login(props))
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.minter == nil {
		return apperr.AuthenticationRequired("Sign-in is not available right now")
	}

	authHeader := c.Request().Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || tokenString == authHeader {
		return apperr.AuthenticationRequired("Missing bearer token")
	}

	ctx := c.Request().Context()
	if _, err := h.minter.VerifyIDToken(ctx, tokenString); err != nil {
		zap.S().Debugw("id token rejected", "error", err)
		return apperr.AuthenticationRequired("Invalid token")
	}

	cookieValue, err := h.minter.SessionCookie(ctx, tokenString, sessionTTL)
	if err != nil {
		return apperr.Internal(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	middleware.ClearSessionCookie(c)
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
	}
	return c.Redirect(http.StatusSeeOther, "/login")
}
