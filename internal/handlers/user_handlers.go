package handlers

import (
	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type profileInput struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=50"`
}

// Me returns the signed-in user.
func (h *UserHandler) Me(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	return ok(c, user)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var in profileInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	updated, err := h.users.UpdateProfile(c.Request().Context(), user, in.Name, in.Phone)
	if err != nil {
		return err
	}
	return ok(c, updated)
}
