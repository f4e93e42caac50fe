package handler // handler package contains reservation lifecycle handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-reservation/internal/model"
	"github.com/iliyamo/dining-reservation/internal/service"
)

// ReservationHandler exposes the reservation workflows over HTTP.
type ReservationHandler struct {
	Svc *service.ReservationService
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body struct {
		Diner        uint64     `json:"diner"`    // diner id
		DinerID      uint64     `json:"diner_id"` // alias for diner
		GuestsCount  int        `json:"guests_count"`
		DateReserved *time.Time `json:"date_reserved"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	in := service.NewReservation{DinerID: body.Diner, GuestsCount: body.GuestsCount}
	if in.DinerID == 0 {
		in.DinerID = body.DinerID
	}
	if body.DateReserved != nil {
		in.DateReserved = *body.DateReserved
	}
	v, err := h.Svc.CreateReservation(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// List handles GET /v1/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	page, err := h.Svc.ListReservations(c.Request().Context(), pageQuery(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	v, err := h.Svc.GetReservation(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Update handles PUT /v1/reservations/:id.  Only guests_count and
// date_reserved are editable; status, tables and payment belong to the
// lifecycle workflows.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var body struct {
		GuestsCount  *int            `json:"guests_count"`
		DateReserved *time.Time      `json:"date_reserved"`
		Status       json.RawMessage `json:"status"`
		Tables       json.RawMessage `json:"tables"`
		Payment      json.RawMessage `json:"payment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Status != nil || body.Tables != nil || body.Payment != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status, tables and payment cannot be edited directly"})
	}
	v, err := h.Svc.UpdateReservation(c.Request().Context(), id, model.ReservationPatch{
		GuestsCount:  body.GuestsCount,
		DateReserved: body.DateReserved,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	if err := h.Svc.RemoveReservation(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignTables handles PUT /v1/reservations/:id/tables.  The body is a
// JSON array of table ids; {"tables": [...]} is accepted as well.
func (h *ReservationHandler) AssignTables(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	ids, err := decodeTableIDs(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body must be an array of table ids"})
	}
	v, err := h.Svc.AssignTables(c.Request().Context(), id, ids)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func decodeTableIDs(r io.Reader) ([]uint64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	var ids []uint64
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Tables []uint64 `json:"tables"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Tables, nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CapturePayment handles POST /v1/reservations/:id/payment.  A
// guests_count in the body is ignored; the payment copies the
// reservation's.
func (h *ReservationHandler) CapturePayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	var body struct {
		ChargePerHead     *float64   `json:"charge_per_head"`
		DepositPercentage *float64   `json:"deposit_percentage"`
		DateOfPayment     *time.Time `json:"date_of_payment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	v, err := h.Svc.CapturePayment(c.Request().Context(), id, service.PaymentInput{
		ChargePerHead:     body.ChargePerHead,
		DepositPercentage: body.DepositPercentage,
		DateOfPayment:     body.DateOfPayment,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// GetPayment handles GET /v1/payments/:id.
func (h *ReservationHandler) GetPayment(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return invalidID(c)
	}
	p, err := h.Svc.GetPayment(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
