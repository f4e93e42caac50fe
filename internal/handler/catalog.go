package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-reservation/internal/service"
)

// CatalogHandler serves diners and tables.
type CatalogHandler struct {
	Svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	if svc == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	return &CatalogHandler{Svc: svc}
}

// CreateDiner handles POST /v1/diners.
func (h *CatalogHandler) CreateDiner(c echo.Context) error {
	var body struct {
		FName string `json:"fname"`
		LName string `json:"lname"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	d, err := h.Svc.CreateDiner(c.Request().Context(), service.NewDiner{
		FName: body.FName, LName: body.LName, Email: body.Email, Phone: body.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// ListDiners handles GET /v1/diners.
func (h *CatalogHandler) ListDiners(c echo.Context) error {
	page, err := h.Svc.ListDiners(c.Request().Context(), pageQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetDiner handles GET /v1/diners/:id.
func (h *CatalogHandler) GetDiner(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	d, err := h.Svc.GetDiner(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CreateTable handles POST /v1/tables.
func (h *CatalogHandler) CreateTable(c echo.Context) error {
	var body struct {
		Number   int `json:"number"`
		Capacity int `json:"capacity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	t, err := h.Svc.CreateTable(c.Request().Context(), service.NewTable{Number: body.Number, Capacity: body.Capacity})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// ListTables handles GET /v1/tables.
func (h *CatalogHandler) ListTables(c echo.Context) error {
	page, err := h.Svc.ListTables(c.Request().Context(), pageQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetTable handles GET /v1/tables/:id.
func (h *CatalogHandler) GetTable(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	t, err := h.Svc.GetTable(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
