package organizer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/settings"
)

// Handlers provides HTTP handlers for organize runs and undo.
type Handlers struct {
	service *Service
}

// NewHandlers creates organizer handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers organizer routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/organize", h.Start)
	g.GET("/jobs/organize/latest", h.LatestJob)
	g.GET("/jobs/organize/:id", h.Job)
	g.POST("/items/:id/undo", h.Undo)
}

type organizeRequest struct {
	IDs []int64 `json:"ids"`
}

// Start launches an organize run over the given item ids.
// POST /api/organize
func (h *Handlers) Start(c echo.Context) error {
	var req organizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	job, err := h.service.StartOrganize(c.Request().Context(), req.IDs)
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrNoDestinationRoots):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrAlreadyRunning):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusAccepted, job)
}

// Job returns one organize job by id.
// GET /api/jobs/organize/:id
func (h *Handlers) Job(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid job id")
	}

	job, err := h.service.Job(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

// LatestJob returns the most recent organize job.
// GET /api/jobs/organize/latest
func (h *Handlers) LatestJob(c echo.Context) error {
	job, err := h.service.LatestJob(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no organize jobs yet")
	}
	return c.JSON(http.StatusOK, job)
}

// Undo moves an organized item back to its original location.
// POST /api/items/:id/undo
func (h *Handlers) Undo(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid item id")
	}

	item, err := h.service.Undo(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrItemNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		case errors.Is(err, ErrNotOrganized):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, item)
}
