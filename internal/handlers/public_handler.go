package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// PublicHandler serves unauthenticated content: the portfolio and locale
// detection.
type PublicHandler struct {
	portfolio *services.PortfolioService
	locale    *services.LocaleService
}

func NewPublicHandler(portfolio *services.PortfolioService, locale *services.LocaleService) *PublicHandler {
	return &PublicHandler{portfolio: portfolio, locale: locale}
}

func (h *PublicHandler) Portfolio(c echo.Context) error {
	items, err := h.portfolio.List(c.Request().Context(), c.QueryParam("category"), false)
	if err != nil {
		return err
	}
	return list(c, items)
}

func (h *PublicHandler) PortfolioItem(c echo.Context) error {
	item, err := h.portfolio.GetBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return err
	}
	return ok(c, item)
}

// Locale reports the display locale and currency for the caller.
func (h *PublicHandler) Locale(c echo.Context) error {
	info := h.locale.Detect(c.Request().Context(), c.Request().Header, c.RealIP())
	c.Response().Header().Set("Vary", "CF-IPCountry, X-Vercel-IP-Country, X-Country-Code")
	return ok(c, info)
}

func (h *PublicHandler) AllPortfolio(c echo.Context) error {
	items, err := h.portfolio.List(c.Request().Context(), c.QueryParam("category"), true)
	if err != nil {
		return err
	}
	return list(c, items)
}

func (h *PublicHandler) CreatePortfolio(c echo.Context) error {
	var in services.PortfolioInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	item, err := h.portfolio.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, item)
}

func (h *PublicHandler) UpdatePortfolio(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.PortfolioInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	item, err := h.portfolio.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return ok(c, item)
}

func (h *PublicHandler) DeletePortfolio(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.portfolio.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
