package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/audio"
	"github.com/codebuildervaibhav/speaker-diarization/internal/cleanup"
	"github.com/codebuildervaibhav/speaker-diarization/internal/config"
	"github.com/codebuildervaibhav/speaker-diarization/internal/diarize"
	"github.com/codebuildervaibhav/speaker-diarization/internal/handlers"
	"github.com/codebuildervaibhav/speaker-diarization/internal/logging"
	"github.com/codebuildervaibhav/speaker-diarization/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-diarization/internal/storage"
)

func main() {
	configPath := os.Getenv("DIARIZE_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("Failed to load config")
	}

	logBuffer := logging.NewLogBuffer()
	log := logging.New(cfg.Log, logBuffer)

	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp directory")
	}

	log.Info().Msg("Initializing components...")

	ctx := context.Background()
	gpuName := pipeline.NvidiaSMIProbe(ctx)
	probe := func(context.Context) string { return gpuName }
	device := pipeline.SelectDevice(ctx, cfg.Pipeline.Device, probe, logging.Component(log, "device"))

	var backend pipeline.Backend
	switch cfg.Pipeline.Backend {
	case config.BackendExec:
		backend = pipeline.NewExecBackend(pipeline.ExecConfig{
			Python:   cfg.Pipeline.Exec.Python,
			Script:   cfg.Pipeline.Exec.Script,
			TokenEnv: cfg.Pipeline.TokenEnv,
		})
	default:
		backend = pipeline.NewSidecarBackend(pipeline.SidecarConfig{
			BaseURL: cfg.Pipeline.Sidecar.BaseURL,
			Timeout: cfg.Pipeline.Sidecar.Timeout,
		})
	}

	handle := pipeline.Load(ctx, backend, pipeline.LoadOptions{
		Token:  cfg.Token,
		Models: cfg.Pipeline.Models,
		Device: device,
	}, logging.Component(log, "pipeline"))

	opts := diarize.Options{
		Workers:   cfg.Pipeline.Workers,
		QueueSize: cfg.Pipeline.QueueSize,
		Roles: diarize.Roles{
			Doctor:         cfg.Roles.Doctor,
			Patient:        cfg.Roles.Patient,
			FallbackFormat: cfg.Roles.FallbackFormat,
		},
	}
	if cfg.Pipeline.Normalize {
		opts.Normalizer = audio.NewNormalizer(cfg.Pipeline.FFmpeg, cfg.Storage.TempDir)
	}
	svc := diarize.NewService(handle, opts, logging.Component(log, "diarize"))
	svc.Start()
	defer svc.Stop()

	handlerOpts := handlers.Options{
		TempDir:      cfg.Storage.TempDir,
		ExposeErrors: cfg.Server.ExposeErrors,
	}

	// History and archive are optional; leave the interfaces nil when unset.
	if cfg.Storage.Database != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Database), 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create database directory")
		}
		db, err := storage.NewMetadataDB(cfg.Storage.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer db.Close()
		handlerOpts.History = db
		log.Info().Str("path", cfg.Storage.Database).Msg("Diarization history enabled")
	}
	if cfg.Storage.OutputDir != "" {
		if err := os.MkdirAll(cfg.Storage.OutputDir, 0755); err != nil {
			log.Fatal().Err(err).Msg("Failed to create output directory")
		}
		handlerOpts.Archive = storage.NewLocalStorage(cfg.Storage.OutputDir)
	}

	cleanupScheduler := cleanup.NewScheduler(
		cfg.Storage.TempDir,
		cfg.Cleanup.IntervalMinutes,
		cfg.Cleanup.MaxAgeHours,
		logging.Component(log, "cleanup"),
	)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ErrorHandler:          handlers.ErrorHandler(logging.Component(log, "http")),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: os.Stdout}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "*",
		AllowCredentials: true,
	}))

	httpLog := logging.Component(log, "http")
	uploadHandler := handlers.NewUploadHandler(svc, handlerOpts, httpLog)
	streamHandler := handlers.NewStreamHandler(uploadHandler, cfg.Server.BodyLimitMB*1024*1024)
	healthHandler := handlers.NewHealthHandler(handle, gpuName)
	historyHandler := handlers.NewHistoryHandler(handlerOpts.History, handlerOpts.Archive)

	app.Get("/health", healthHandler.Handle)
	app.Post("/diarize", uploadHandler.Diarize)
	app.Post("/diarize-with-mapping", uploadHandler.DiarizeWithMapping)

	app.Use("/ws/diarize", streamHandler.Upgrade)
	app.Get("/ws/diarize", websocket.New(streamHandler.Handle))

	app.Get("/diarizations", historyHandler.List)
	app.Get("/diarizations/:id", historyHandler.Get)
	app.Get("/diarizations/:id/result", historyHandler.Result)

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	addr := cfg.Addr()
	log.Info().
		Str("addr", addr).
		Str("backend", backend.Name()).
		Bool("model_loaded", handle.Loaded()).
		Str("model", handle.Model()).
		Str("device", handle.Device().String()).
		Msg("Server starting")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	if err := app.Listen(addr); err != nil {
		log.Error().Err(err).Msg("Server failed")
	}
}
