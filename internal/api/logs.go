package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mediastow/mediastow/internal/logger"
)

const defaultLogLimit = 100

// LogsHandlers serves the recent-logs API off the logger stream.
type LogsHandlers struct {
	stream  *logger.Stream
	logPath string
}

// NewLogsHandlers creates logs handlers. A nil stream makes the
// recent-logs endpoint serve an empty list.
func NewLogsHandlers(stream *logger.Stream, logPath string) *LogsHandlers {
	return &LogsHandlers{stream: stream, logPath: logPath}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Recent)
	g.GET("/download", h.Download)
}

// Recent returns buffered log entries, oldest first.
// GET /api/logs?limit=
func (h *LogsHandlers) Recent(c echo.Context) error {
	limit := defaultLogLimit
	if v := c.QueryParam("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries := []logger.Entry{}
	if h.stream != nil {
		entries = h.stream.Recent(limit)
	}
	if entries == nil {
		entries = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Download serves the current log file.
// GET /api/logs/download
func (h *LogsHandlers) Download(c echo.Context) error {
	if h.logPath == "" {
		return echo.NewHTTPError(http.StatusNotFound, "file logging is not configured")
	}
	if _, err := os.Stat(h.logPath); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}
	return c.Attachment(h.logPath, logger.FileName)
}
