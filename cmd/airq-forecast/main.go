package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpapi "airq-forecast/internal/api/http"
	"airq-forecast/internal/airq"
	"airq-forecast/internal/config"
	"airq-forecast/internal/dataset"
	"airq-forecast/internal/ingest"
	"airq-forecast/internal/model"
	"airq-forecast/internal/scheduler"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Shared HTTP client for outbound upstream calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// The ingestion source is resolved once at startup; an unknown source
	// name is a startup failure, not something discovered on first refresh.
	var source ingest.Source
	switch cfg.IngestSource {
	case "cpcb":
		source = ingest.NewCPCBSource(httpClient, cfg.CPCBAPIKey)
	case "openaq":
		source = ingest.NewOpenAQSource(httpClient, "")
	default:
		log.Fatal().Str("source", cfg.IngestSource).Msg("unknown INGEST_SOURCE")
	}

	var augment *ingest.Augmenter
	if cfg.GeocoderAPIKey != "" {
		augment = ingest.NewAugmenter(cfg.GeocoderAPIKey)
	}

	refresher := ingest.NewRefresher(source, augment, cfg.HistoricalCSVPath, cfg.ProcessedCSVPath)

	// Flat-file dataset and model, re-opened per request.
	store := dataset.NewStore(cfg.ProcessedCSVPath)
	models := model.NewLoader(cfg.ModelDir)
	service := airq.NewService(store, models)

	// Optional periodic refresh.
	sched := scheduler.New(refresher, cfg.RefreshInterval, cfg.FetchLimit)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "airq-forecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware. CORS is open: the API fronts a browser dev client.
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	httpapi.RegisterRoutes(app, service, refresher, cfg.RefreshToken)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error().Err(err).Msg("fiber server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("dataset", cfg.ProcessedCSVPath).
		Str("source", source.Name()).Msg("airq-forecast listening")

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
}
