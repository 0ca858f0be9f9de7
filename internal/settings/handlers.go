package settings

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes the settings endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates settings handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers settings routes on the given group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetSettings)
	g.PUT("", h.UpdateSettings)
	g.GET("/export", h.ExportSettings)
	g.POST("/import", h.ImportSettings)
}

// GetSettings returns the current settings.
// GET /api/settings
func (h *Handlers) GetSettings(c echo.Context) error {
	settings, err := h.service.Get(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings replaces the stored settings.
// PUT /api/settings
func (h *Handlers) UpdateSettings(c echo.Context) error {
	var settings Settings
	if err := c.Bind(&settings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated, err := h.service.Update(c.Request().Context(), &settings)
	if err != nil {
		if isValidationError(err) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

// ExportSettings returns the settings as a YAML attachment.
// GET /api/settings/export
func (h *Handlers) ExportSettings(c echo.Context) error {
	data, err := h.service.ExportYAML(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="mediastow-settings.yaml"`)
	return c.Blob(http.StatusOK, "application/x-yaml", data)
}

// ImportSettings replaces the settings from an uploaded YAML document.
// POST /api/settings/import
func (h *Handlers) ImportSettings(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}

	updated, err := h.service.ImportYAML(c.Request().Context(), body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, updated)
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSourceFolder)
}

// readBody reads an import payload, capped at 1 MiB.
func readBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	return io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
}
