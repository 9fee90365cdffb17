package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/web/pages"
)

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// CustomErrorHandler is the single place errors become responses. API paths
// get {"error": {...}} JSON, everything else the HTML error page.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	ae := toAppError(err)
	status := ae.Status()

	if status >= http.StatusInternalServerError {
		zap.S().Errorw("request error",
			"path", c.Request().URL.Path,
			"code", ae.Code,
			"error", err,
		)
	} else {
		zap.S().Debugw("request rejected", "path", c.Request().URL.Path, "code", ae.Code, "message", ae.Message)
	}

	var writeErr error
	switch {
	case c.Request().Method == http.MethodHead:
		writeErr = c.NoContent(status)
	case IsAPI(c):
		writeErr = c.JSON(status, map[string]errorBody{
			"error": {Code: ae.Code, Message: ae.Message, Fields: ae.Fields},
		})
	default:
		c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
		c.Response().WriteHeader(status)
		writeErr = pages.ErrorPage(pages.ErrorPageProps{
			Code:    status,
			Title:   pageTitle(status),
			Message: ae.Message,
		}).Render(c.Request().Context(), c.Response())
	}
	if writeErr != nil {
		zap.S().Errorw("failed to write error response", "error", writeErr)
	}
}

// toAppError folds echo's own errors (404 routes, 405, bind failures) into
// the application taxonomy.
func toAppError(err error) *apperr.Error {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return apperr.As(err)
	}

	msg, _ := he.Message.(string)
	switch he.Code {
	case http.StatusNotFound:
		if msg == "" || msg == http.StatusText(http.StatusNotFound) {
			msg = "The page you're looking for doesn't exist."
		}
		return apperr.NotFound(msg)
	case http.StatusUnauthorized:
		return apperr.AuthenticationRequired("Please log in to continue.")
	case http.StatusForbidden:
		return apperr.Forbidden("You don't have permission to access this resource.")
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		if msg == "" {
			msg = "The request could not be processed."
		}
		return apperr.ValidationFailed(msg, nil)
	case http.StatusMethodNotAllowed:
		return apperr.MethodNotAllowed("Method not allowed")
	}
	return apperr.Internal(he)
}

func pageTitle(status int) string {
	switch status {
	case http.StatusNotFound:
		return "Page Not Found"
	case http.StatusForbidden:
		return "Access Denied"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusConflict:
		return "Conflict"
	}
	return "Internal Server Error"
}
