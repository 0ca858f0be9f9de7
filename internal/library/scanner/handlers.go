package scanner

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/settings"
)

// Handlers provides HTTP handlers for scan runs.
type Handlers struct {
	service *Service
}

// NewHandlers creates scanner handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers scanner routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/scan", h.Start)
	g.GET("/jobs/scan/latest", h.LatestJob)
	g.GET("/jobs/scan/:id", h.Job)
}

// Start launches a scan over all configured source folders.
// POST /api/scan
func (h *Handlers) Start(c echo.Context) error {
	job, err := h.service.StartScan(c.Request().Context())
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrNoSourceFolders):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, jobs.ErrAlreadyRunning):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusAccepted, job)
}

// Job returns one scan job by id.
// GET /api/jobs/scan/:id
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

// LatestJob returns the most recent scan job.
// GET /api/jobs/scan/latest
func (h *Handlers) LatestJob(c echo.Context) error {
	job, err := h.service.LatestJob(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if job == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no scan jobs yet")
	}
	return c.JSON(http.StatusOK, job)
}
