package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// WhatsAppHandler serves the customer's sessions and AI bots.
type WhatsAppHandler struct {
	sessions *services.WhatsAppSessionService
	bots     *services.AIBotService
}

func NewWhatsAppHandler(sessions *services.WhatsAppSessionService, bots *services.AIBotService) *WhatsAppHandler {
	return &WhatsAppHandler{sessions: sessions, bots: bots}
}

func (h *WhatsAppHandler) Subscription(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sub, err := h.sessions.Subscription(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return ok(c, map[string]interface{}{"active": sub != nil, "subscription": sub})
}

func (h *WhatsAppHandler) ListSessions(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	sessions, err := h.sessions.List(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return list(c, sessions)
}

func (h *WhatsAppHandler) CreateSession(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.CreateSessionInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	session, err := h.sessions.Create(c.Request().Context(), user, in)
	if err != nil {
		return err
	}
	return created(c, session)
}

// SessionStatus polls the gateway and returns the refreshed session.
func (h *WhatsAppHandler) SessionStatus(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	session, err := h.sessions.RefreshStatus(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, session)
}

func (h *WhatsAppHandler) Connect(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := h.sessions.Connect(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, res)
}

func (h *WhatsAppHandler) GetWebhook(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	raw, err := h.sessions.Webhook(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *WhatsAppHandler) SetWebhook(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.WebhookInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	raw, err := h.sessions.SetWebhook(c.Request().Context(), user, id, in)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (h *WhatsAppHandler) BindBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.BindInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	binding, err := h.bots.Bind(c.Request().Context(), user, id, in)
	if err != nil {
		return err
	}
	return ok(c, binding)
}

func (h *WhatsAppHandler) UnbindBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.bots.Unbind(c.Request().Context(), user, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WhatsAppHandler) ListBots(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	bots, err := h.bots.ListBots(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return list(c, bots)
}

func (h *WhatsAppHandler) GetBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	bot, err := h.bots.GetBot(c.Request().Context(), user, id)
	if err != nil {
		return err
	}
	return ok(c, bot)
}

func (h *WhatsAppHandler) CreateBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.BotInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	bot, err := h.bots.CreateBot(c.Request().Context(), user, in)
	if err != nil {
		return err
	}
	return created(c, bot)
}

func (h *WhatsAppHandler) UpdateBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.BotInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	bot, err := h.bots.UpdateBot(c.Request().Context(), user, id, in)
	if err != nil {
		return err
	}
	return ok(c, bot)
}

func (h *WhatsAppHandler) DeleteBot(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.bots.DeleteBot(c.Request().Context(), user, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WhatsAppHandler) AddDocument(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.DocumentInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	doc, err := h.bots.AddDocument(c.Request().Context(), user, id, in)
	if err != nil {
		return err
	}
	return created(c, doc)
}

func (h *WhatsAppHandler) DeleteDocument(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	docID, err := idParam(c, "docId")
	if err != nil {
		return err
	}
	if err := h.bots.DeleteDocument(c.Request().Context(), user, id, docID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
