package filesystem

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for the directory browser.
type Handlers struct {
	service *Service
}

// NewHandlers creates filesystem handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers filesystem routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/filesystem/browse", h.Browse)
}

// Browse lists directories under the given path.
// GET /api/filesystem/browse?path=
func (h *Handlers) Browse(c echo.Context) error {
	result, err := h.service.Browse(c.QueryParam("path"))
	if err != nil {
		switch {
		case errors.Is(err, ErrPathNotAllowed):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, ErrPathNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrInvalidPath), errors.Is(err, ErrNotDirectory):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}
