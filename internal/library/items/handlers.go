package items

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediastow/mediastow/internal/store"
)

// Handlers provides HTTP handlers for the media item inventory.
type Handlers struct {
	service *Service
}

// NewHandlers creates items handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers item routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/items", h.List)
	g.GET("/items/:id", h.Get)
	g.PUT("/items/:id", h.Update)
	g.DELETE("/items/:id", h.Delete)
	g.POST("/items/:id/rescan", h.Rescan)
	g.GET("/stats", h.Stats)
}

func itemID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}
	return id, nil
}

// List returns items matching the query filters, newest first.
// GET /api/items
func (h *Handlers) List(c echo.Context) error {
	filter := store.ItemFilter{
		Type:   store.MediaType(c.QueryParam("type")),
		Status: store.ItemStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
	}

	if raw := c.QueryParam("confidenceBelow"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.ConfidenceBelow = v
		}
	}
	if raw := c.QueryParam("duplicatesOnly"); raw != "" {
		filter.DuplicatesOnly = raw == "true" || raw == "1"
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Limit = v
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			filter.Offset = v
		}
	}

	items, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// Get returns one item.
// GET /api/items/:id
func (h *Handlers) Get(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}

	item, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

// Update applies a manual correction to an item.
// PUT /api/items/:id
func (h *Handlers) Update(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}

	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	item, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		case errors.Is(err, ErrInvalidType):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, item)
}

// Rescan queues an item for reclassification on the next scan.
// POST /api/items/:id/rescan
func (h *Handlers) Rescan(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}

	item, err := h.service.RequestRescan(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, item)
}

// Delete removes an item row.
// DELETE /api/items/:id
func (h *Handlers) Delete(c echo.Context) error {
	id, err := itemID(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats returns library-wide counters.
// GET /api/stats
func (h *Handlers) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, stats)
}
