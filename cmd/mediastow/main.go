// mediastow is a headless media ingestion-and-organization server. It
// watches nothing and owns nothing until asked: scans are started over
// the API, organize runs move files into the configured library roots,
// and every step is observable over the WebSocket event stream.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mediastow/mediastow/internal/api"
	"github.com/mediastow/mediastow/internal/config"
	"github.com/mediastow/mediastow/internal/database"
	"github.com/mediastow/mediastow/internal/logger"
	"github.com/mediastow/mediastow/internal/websocket"
)

func main() {
	// Load .env when present. Real environment variables still win
	// inside viper.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	stream := logger.NewStream(500)
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, stream)
	defer log.Close()

	log.Info().
		Str("logLevel", cfg.Logging.Level).
		Str("database", cfg.Database.Path).
		Msg("starting mediastow")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Live log entries flow to subscribers once the hub is up.
	stream.AttachHub(hub)

	server, err := api.NewServer(db, hub, stream, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	server.Echo().GET("/ws", hub.HandleWebSocket)

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
