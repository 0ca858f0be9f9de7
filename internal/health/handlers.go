package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides the HTTP handler for health checks.
type Handlers struct {
	service *Service
}

// NewHandlers creates health handlers.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers health routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/health", h.Check)
}

// Check runs all component checks.
// GET /api/health
func (h *Handlers) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Check(c.Request().Context()))
}
