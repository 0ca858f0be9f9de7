// Package api assembles the HTTP surface of the mediastow server: it
// constructs the service graph, installs middleware, and mounts every
// route group under /api.
package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	apimw "github.com/mediastow/mediastow/internal/api/middleware"
	"github.com/mediastow/mediastow/internal/catalog/tmdb"
	"github.com/mediastow/mediastow/internal/config"
	"github.com/mediastow/mediastow/internal/database"
	"github.com/mediastow/mediastow/internal/filesystem"
	"github.com/mediastow/mediastow/internal/health"
	"github.com/mediastow/mediastow/internal/history"
	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/library/duplicates"
	"github.com/mediastow/mediastow/internal/library/items"
	"github.com/mediastow/mediastow/internal/library/organizer"
	"github.com/mediastow/mediastow/internal/library/scanner"
	"github.com/mediastow/mediastow/internal/logger"
	"github.com/mediastow/mediastow/internal/mediainfo"
	"github.com/mediastow/mediastow/internal/progress"
	"github.com/mediastow/mediastow/internal/scheduler"
	"github.com/mediastow/mediastow/internal/scheduler/tasks"
	"github.com/mediastow/mediastow/internal/settings"
	"github.com/mediastow/mediastow/internal/store"
	"github.com/mediastow/mediastow/internal/websocket"
)

// Server handles HTTP requests for the mediastow API.
type Server struct {
	echo   *echo.Echo
	hub    *websocket.Hub
	stream *logger.Stream
	logger zerolog.Logger
	cfg    *config.Config

	// Services
	store             *store.Store
	settingsService   *settings.Service
	historyService    *history.Service
	catalogClient     *tmdb.Client
	probeService      *mediainfo.Service
	duplicateDetector *duplicates.Detector
	coordinator       *jobs.Coordinator
	publisher         *progress.Publisher
	scannerService    *scanner.Service
	organizerService  *organizer.Service
	itemsService      *items.Service
	filesystemService *filesystem.Service
	healthService     *health.Service
	scheduler         *scheduler.Scheduler
}

// NewServer wires the full service graph over the given database and
// mounts the routes. The hub may be nil, in which case the pipeline
// runs without publishing stream events; the stream may be nil, in
// which case the recent-logs endpoint serves an empty list.
func NewServer(db *database.DB, hub *websocket.Hub, stream *logger.Stream, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		hub:    hub,
		stream: stream,
		logger: log,
		cfg:    cfg,
		store:  store.New(db.Conn()),
	}

	// Leaf services first
	s.settingsService = settings.NewService(s.store, log)
	s.historyService = history.NewService(s.store, log)
	s.catalogClient = tmdb.NewClient(cfg.Catalog, s.settingsService, log)
	s.probeService = mediainfo.NewService(cfg.Probe, log)
	s.duplicateDetector = duplicates.NewDetector(s.store, log)
	s.coordinator = jobs.NewCoordinator()
	if hub != nil {
		s.publisher = progress.NewPublisher(hub, log)
	}

	// Pipeline services
	s.scannerService = scanner.NewService(
		s.store,
		s.settingsService,
		s.catalogClient,
		s.probeService,
		s.duplicateDetector,
		s.coordinator,
		s.publisher,
		log,
	)
	s.organizerService = organizer.NewService(
		s.store,
		s.settingsService,
		s.historyService,
		s.coordinator,
		s.publisher,
		log,
	)

	// The scanner triggers auto-organize runs, so the organizer is
	// wired in after both exist.
	s.scannerService.SetOrganizer(s.organizerService)

	s.itemsService = items.NewService(s.store, log)
	s.filesystemService = filesystem.NewService(cfg.Browser.AllowedRoots, log)
	s.healthService = health.NewService(db, s.settingsService, s.probeService, log)

	sched, err := scheduler.New(log)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	if err := tasks.RegisterHistoryRetentionTask(sched, s.historyService, cfg.Maintenance.LogRetentionDays); err != nil {
		return nil, fmt.Errorf("register history retention task: %w", err)
	}
	if err := tasks.RegisterDatabaseOptimizeTask(sched, db); err != nil {
		return nil, fmt.Errorf("register database optimize task: %w", err)
	}
	s.scheduler = sched

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders())

	// Request body size limit
	s.echo.Use(middleware.BodyLimit("2M"))

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Api-Key"},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression. The websocket upgrade and the health endpoint
	// are served uncompressed.
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			if c.Request().Header.Get("Upgrade") == "websocket" {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
	}))

	// Static API key guard, active only when a key is configured.
	s.echo.Use(apimw.APIKey(s.cfg.Server.APIKey))
}

// setupRoutes mounts every route group under /api.
func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	scannerHandlers := scanner.NewHandlers(s.scannerService)
	scannerHandlers.RegisterRoutes(api)

	organizerHandlers := organizer.NewHandlers(s.organizerService)
	organizerHandlers.RegisterRoutes(api)

	itemHandlers := items.NewHandlers(s.itemsService)
	itemHandlers.RegisterRoutes(api)

	historyHandlers := history.NewHandlers(s.historyService)
	historyHandlers.RegisterRoutes(api.Group("/history"))

	settingsHandlers := settings.NewHandlers(s.settingsService)
	settingsHandlers.RegisterRoutes(api.Group("/settings"))

	filesystemHandlers := filesystem.NewHandlers(s.filesystemService)
	filesystemHandlers.RegisterRoutes(api)

	healthHandlers := health.NewHandlers(s.healthService)
	healthHandlers.RegisterRoutes(api)

	schedulerHandlers := scheduler.NewHandlers(s.scheduler)
	schedulerHandlers.RegisterRoutes(api)

	logsHandlers := NewLogsHandlers(s.stream, s.logFilePath())
	logsHandlers.RegisterRoutes(api.Group("/logs"))
}

// logFilePath locates the active log file, "" when file logging is off.
func (s *Server) logFilePath() string {
	if s.cfg.Logging.Path == "" {
		return ""
	}
	return filepath.Join(s.cfg.Logging.Path, logger.FileName)
}

// Start begins listening for HTTP requests and starts the maintenance
// scheduler.
func (s *Server) Start(address string) error {
	if err := s.scheduler.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to start scheduler")
	}

	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server and the scheduler.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.scheduler.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop scheduler")
	}

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance. The websocket upgrade is
// mounted on it by the caller once the hub is running.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
