package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-reservation/internal/handler"
)

// RegisterRoutes registers the health check.  db may be nil when records
// are kept in memory.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterCatalog registers diner and table routes under /v1.
func RegisterCatalog(g *echo.Group, h *handler.CatalogHandler) {
	g.POST("/diners", h.CreateDiner)
	g.GET("/diners", h.ListDiners)
	g.GET("/diners/:id", h.GetDiner)

	g.POST("/tables", h.CreateTable)
	g.GET("/tables", h.ListTables)
	g.GET("/tables/:id", h.GetTable)
}

// RegisterReservations registers the reservation lifecycle routes under
// /v1.
func RegisterReservations(g *echo.Group, h *handler.ReservationHandler) {
	g.POST("/reservations", h.Create)
	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.Get)
	g.PUT("/reservations/:id", h.Update)
	g.DELETE("/reservations/:id", h.Delete)
	// Lifecycle workflows
	g.PUT("/reservations/:id/tables", h.AssignTables)
	g.POST("/reservations/:id/payment", h.CapturePayment)

	g.GET("/payments/:id", h.GetPayment)
}
