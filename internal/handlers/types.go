package handlers

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/apperr"
	"agency_portal_echo/internal/middleware"
	"agency_portal_echo/internal/models"
)

// listResponse wraps collections so the API can add paging later without
// breaking clients.
type listResponse struct {
	Data interface{} `json:"data"`
}

// bindInput decodes the request body into in and validates it.
func bindInput(c echo.Context, in interface{}) error {
	if err := c.Bind(in); err != nil {
		return apperr.ValidationFailed("Malformed request body", nil)
	}
	return c.Validate(in)
}

func idParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.ValidationFailed("Invalid "+name, map[string]string{name: "numeric"})
	}
	return uint(id), nil
}

func currentUser(c echo.Context) (models.User, error) {
	u := middleware.CurrentUser(c)
	if u == nil {
		return models.User{}, apperr.AuthenticationRequired("Please log in to continue")
	}
	return *u, nil
}

func ok(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, v)
}

func list(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusOK, listResponse{Data: v})
}

func created(c echo.Context, v interface{}) error {
	return c.JSON(http.StatusCreated, v)
}

// render writes a templ page with the given status.
func render(c echo.Context, status int, page templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return page.Render(c.Request().Context(), c.Response())
}
