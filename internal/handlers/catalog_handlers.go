package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"agency_portal_echo/internal/services"
)

// CatalogHandler serves payment methods, bank details and WhatsApp packages.
type CatalogHandler struct {
	methods  *services.PaymentMethodService
	banks    *services.BankDetailService
	packages *services.PackageService
}

func NewCatalogHandler(methods *services.PaymentMethodService, banks *services.BankDetailService, packages *services.PackageService) *CatalogHandler {
	return &CatalogHandler{methods: methods, banks: banks, packages: packages}
}

// ActiveMethods is the public checkout list.
func (h *CatalogHandler) ActiveMethods(c echo.Context) error {
	methods, err := h.methods.ListActive(c.Request().Context())
	if err != nil {
		return err
	}
	return list(c, methods)
}

func (h *CatalogHandler) AllMethods(c echo.Context) error {
	methods, err := h.methods.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return list(c, methods)
}

func (h *CatalogHandler) CreateMethod(c echo.Context) error {
	var in services.PaymentMethodInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	m, err := h.methods.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, m)
}

func (h *CatalogHandler) UpdateMethod(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.PaymentMethodInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	m, err := h.methods.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return ok(c, m)
}

func (h *CatalogHandler) DeleteMethod(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.methods.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ListBanks(c echo.Context) error {
	banks, err := h.banks.List(c.Request().Context())
	if err != nil {
		return err
	}
	return list(c, banks)
}

// CreateBank also creates the bank's manual transfer payment method.
func (h *CatalogHandler) CreateBank(c echo.Context) error {
	var in services.BankDetailInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	res, err := h.banks.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, res)
}

func (h *CatalogHandler) UpdateBank(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.BankDetailInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	bank, err := h.banks.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return ok(c, bank)
}

func (h *CatalogHandler) DeleteBank(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.banks.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CatalogHandler) ActivePackages(c echo.Context) error {
	pkgs, err := h.packages.List(c.Request().Context(), false)
	if err != nil {
		return err
	}
	return list(c, pkgs)
}

func (h *CatalogHandler) AllPackages(c echo.Context) error {
	pkgs, err := h.packages.List(c.Request().Context(), true)
	if err != nil {
		return err
	}
	return list(c, pkgs)
}

func (h *CatalogHandler) CreatePackage(c echo.Context) error {
	var in services.PackageInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	pkg, err := h.packages.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return created(c, pkg)
}

func (h *CatalogHandler) UpdatePackage(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in services.PackageInput
	if err := bindInput(c, &in); err != nil {
		return err
	}
	pkg, err := h.packages.Update(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return ok(c, pkg)
}
