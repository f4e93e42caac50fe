package handler // handler defines http handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/dining-reservation/internal/repository"
	"github.com/iliyamo/dining-reservation/internal/service"
)

// parseID reads the :id path parameter.
func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func invalidID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

// pageQuery reads ?page, ?limit and ?sort.  Malformed numbers fall back to
// the defaults.
func pageQuery(c echo.Context) repository.PageQuery {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return repository.PageQuery{Page: page, Limit: limit, Sort: c.QueryParam("sort")}
}

// writeError maps service errors to status codes.  Unexpected errors are
// logged and answered with a generic message.
func writeError(c echo.Context, err error) error {
	switch {
	case service.IsValidation(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case service.IsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case service.IsConflict(err):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}
