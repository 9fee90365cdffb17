package handlers

import (
	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// InternalHandler answers the AI worker. Routes are guarded by the shared
// internal API key, not a user session.
type InternalHandler struct {
	bots *services.AIBotService
}

func NewInternalHandler(bots *services.AIBotService) *InternalHandler {
	return &InternalHandler{bots: bots}
}

// ResolveSession maps ?token= to {userId, botActive, subscriptionActive}.
func (h *InternalHandler) ResolveSession(c echo.Context) error {
	res, err := h.bots.ResolveToken(c.Request().Context(), c.QueryParam("token"))
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *InternalHandler) SessionBot(c echo.Context) error {
	k, err := h.bots.Knowledge(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return ok(c, k)
}
