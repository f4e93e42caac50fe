package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/dining-reservation/internal/handler"
	"github.com/iliyamo/dining-reservation/internal/lock"
	"github.com/iliyamo/dining-reservation/internal/repository"
	"github.com/iliyamo/dining-reservation/internal/router"
	"github.com/iliyamo/dining-reservation/internal/service"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := repository.NewMemoryStore()
	e := echo.New()
	router.RegisterRoutes(e, nil)
	v1 := e.Group("/v1")
	router.RegisterCatalog(v1, handler.NewCatalogHandler(service.NewCatalogService(store)))
	router.RegisterReservations(v1, handler.NewReservationHandler(
		service.NewReservationService(store, lock.NewLocal(time.Second), nil)))
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func id(t *testing.T, m map[string]any) string {
	t.Helper()
	v, ok := m["id"].(float64)
	require.True(t, ok, "response without id: %v", m)
	return strconv.FormatUint(uint64(v), 10)
}

func TestHealth(t *testing.T) {
	e := newServer(t)
	rec, _ := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("down") }

func TestHealthReportsDatabaseDown(t *testing.T) {
	e := echo.New()
	router.RegisterRoutes(e, downDB{})
	rec, _ := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	e := newServer(t)

	rec, diner := do(t, e, http.MethodPost, "/v1/diners", `{"fname":"Ada","lname":"Lovelace","email":"ada@example.com","phone":"555"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, table := do(t, e, http.MethodPost, "/v1/tables", `{"number":12,"capacity":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, res := do(t, e, http.MethodPost, "/v1/reservations",
		`{"diner":`+id(t, diner)+`,"guests_count":3,"date_reserved":"2030-05-01T19:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "created", res["status"])
	rid := id(t, res)

	rec, res = do(t, e, http.MethodPut, "/v1/reservations/"+rid+"/tables", `[`+id(t, table)+`]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", res["status"])
	assert.Equal(t, 1.0, res["table_count"])
	tables := res["tables"].([]any)
	require.Len(t, tables, 1)
	assert.Equal(t, 12.0, tables[0].(map[string]any)["number"])

	rec, res = do(t, e, http.MethodPost, "/v1/reservations/"+rid+"/payment",
		`{"charge_per_head":20,"deposit_percentage":0.25,"guests_count":99}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", res["status"])
	payment := res["payment"].(map[string]any)
	assert.Equal(t, 60.0, payment["total_amount"])
	assert.Equal(t, 45.0, payment["deposit_fee"])
	_, hasGuests := payment["guests_count"]
	assert.False(t, hasGuests)

	rec, _ = do(t, e, http.MethodPost, "/v1/reservations/"+rid+"/payment", `{"charge_per_head":20,"deposit_percentage":0.25}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, pay := do(t, e, http.MethodGet, "/v1/payments/"+rid, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, pay["guests_count"])

	rec, res = do(t, e, http.MethodGet, "/v1/reservations/"+rid, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, res["diner"].(map[string]any), "date_registered")

	rec, _ = do(t, e, http.MethodDelete, "/v1/reservations/"+rid, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, tbl := do(t, e, http.MethodGet, "/v1/tables/"+id(t, table), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, tbl["reservation_count"])
	rec, d := do(t, e, http.MethodGet, "/v1/diners/"+id(t, diner), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, d["reservation_count"])

	rec, _ = do(t, e, http.MethodGet, "/v1/payments/"+rid, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssignTablesAcceptsWrappedBody(t *testing.T) {
	e := newServer(t)
	_, diner := do(t, e, http.MethodPost, "/v1/diners", `{"fname":"A","lname":"B","email":"a@b.c"}`)
	_, table := do(t, e, http.MethodPost, "/v1/tables", `{"number":1,"capacity":2}`)
	_, res := do(t, e, http.MethodPost, "/v1/reservations",
		`{"diner_id":`+id(t, diner)+`,"guests_count":2,"date_reserved":"2030-05-01T19:00:00Z"}`)

	rec, _ := do(t, e, http.MethodPut, "/v1/reservations/"+id(t, res)+"/tables", `{"tables":[`+id(t, table)+`]}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestErrorStatusMapping(t *testing.T) {
	e := newServer(t)
	_, diner := do(t, e, http.MethodPost, "/v1/diners", `{"fname":"A","lname":"B","email":"a@b.c"}`)
	_, res := do(t, e, http.MethodPost, "/v1/reservations",
		`{"diner":`+id(t, diner)+`,"guests_count":2,"date_reserved":"2030-05-01T19:00:00Z"}`)
	rid := id(t, res)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad id", http.MethodGet, "/v1/reservations/abc", "", http.StatusBadRequest},
		{"missing reservation", http.MethodGet, "/v1/reservations/999", "", http.StatusNotFound},
		{"empty tables", http.MethodPut, "/v1/reservations/" + rid + "/tables", `[]`, http.StatusBadRequest},
		{"duplicate tables", http.MethodPut, "/v1/reservations/" + rid + "/tables", `[1,1]`, http.StatusBadRequest},
		{"unknown table", http.MethodPut, "/v1/reservations/" + rid + "/tables", `[999]`, http.StatusNotFound},
		{"tables not an array", http.MethodPut, "/v1/reservations/" + rid + "/tables", `"x"`, http.StatusBadRequest},
		{"payment before tables", http.MethodPost, "/v1/reservations/" + rid + "/payment", `{"charge_per_head":1,"deposit_percentage":0}`, http.StatusConflict},
		{"payment missing fields", http.MethodPost, "/v1/reservations/" + rid + "/payment", `{}`, http.StatusBadRequest},
		{"edit status", http.MethodPut, "/v1/reservations/" + rid, `{"status":"confirmed"}`, http.StatusBadRequest},
		{"zero guests", http.MethodPost, "/v1/reservations", `{"diner":` + id(t, diner) + `,"guests_count":0,"date_reserved":"2030-05-01T19:00:00Z"}`, http.StatusBadRequest},
		{"unknown diner", http.MethodPost, "/v1/reservations", `{"diner":999,"guests_count":1,"date_reserved":"2030-05-01T19:00:00Z"}`, http.StatusNotFound},
		{"duplicate email", http.MethodPost, "/v1/diners", `{"fname":"A","lname":"B","email":"a@b.c"}`, http.StatusConflict},
		{"bad sort", http.MethodGet, "/v1/reservations?sort=diner", "", http.StatusBadRequest},
		{"remove missing", http.MethodDelete, "/v1/reservations/999", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, e, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestUpdateAndListReservations(t *testing.T) {
	e := newServer(t)
	_, diner := do(t, e, http.MethodPost, "/v1/diners", `{"fname":"A","lname":"B","email":"a@b.c"}`)
	for _, g := range []string{"1", "2", "3"} {
		rec, _ := do(t, e, http.MethodPost, "/v1/reservations",
			`{"diner":`+id(t, diner)+`,"guests_count":`+g+`,"date_reserved":"2030-05-0`+g+`T19:00:00Z"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, page := do(t, e, http.MethodGet, "/v1/reservations?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.0, page["total_docs"])
	assert.Equal(t, 2.0, page["total_pages"])
	docs := page["docs"].([]any)
	require.Len(t, docs, 2)
	first := docs[0].(map[string]any)
	assert.Equal(t, 3.0, first["guests_count"])
	assert.NotNil(t, first["diner"])

	rec, upd := do(t, e, http.MethodPut, "/v1/reservations/"+id(t, first), `{"guests_count":8}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 8.0, upd["guests_count"])
	_, hasTables := upd["tables"]
	assert.False(t, hasTables)
}

func TestHugePageReturnsEmptyPage(t *testing.T) {
	e := newServer(t)
	_, diner := do(t, e, http.MethodPost, "/v1/diners", `{"fname":"A","lname":"B","email":"a@b.c"}`)
	rec, _ := do(t, e, http.MethodPost, "/v1/reservations",
		`{"diner":`+id(t, diner)+`,"guests_count":2,"date_reserved":"2030-05-01T19:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for _, target := range []string{
		"/v1/reservations?page=9223372036854775807&limit=100",
		"/v1/diners?page=9223372036854775807&limit=100",
		"/v1/tables?page=9223372036854775807",
	} {
		rec, page := do(t, e, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Empty(t, page["docs"], target)
	}
}
