package handlers

import (
	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// GetPreference returns where receipts are sent, defaulting to email.
func (h *UserHandler) GetPreference(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	pref, err := h.users.Preference(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}
	return ok(c, pref)
}

func (h *UserHandler) UpdatePreference(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.PreferenceInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	pref, err := h.users.SetPreference(c.Request().Context(), user.ID, in)
	if err != nil {
		return err
	}
	return ok(c, pref)
}
