package taxonomy

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/carenote/carenote/pkg/pagination"
)

// Handler exposes read-only taxonomy browsing for UI population.
type Handler struct {
	idx *Index
}

func NewHandler(idx *Index) *Handler {
	return &Handler{idx: idx}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/taxonomy", h.ListEntries)
	api.GET("/taxonomy/:id", h.GetEntry)
}

func (h *Handler) ListEntries(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.idx.All()

	start := pg.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + pg.Limit
	if end > len(all) {
		end = len(all)
	}

	return c.JSON(http.StatusOK, pagination.NewResponse(all[start:end], len(all), pg.Limit, pg.Offset))
}

func (h *Handler) GetEntry(c echo.Context) error {
	e, err := h.idx.Lookup(c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "taxonomy entry not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, e)
}
