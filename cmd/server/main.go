package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/credentia/certportal-backend/internal/config"
	"github.com/credentia/certportal-backend/internal/database"
	"github.com/credentia/certportal-backend/internal/handler"
	"github.com/credentia/certportal-backend/internal/logger"
	"github.com/credentia/certportal-backend/internal/repository"
	"github.com/credentia/certportal-backend/internal/router"
	"github.com/credentia/certportal-backend/internal/service"
	"github.com/credentia/certportal-backend/internal/validator"
	"github.com/credentia/certportal-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting Credentia Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	eventRepo := repository.NewSecurityEventRepository(pool)
	resultRepo := repository.NewResultRepository(pool)
	certRepo := repository.NewCertificateRepository(pool)
	telemetryRepo := repository.NewTelemetryRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	identityService := service.NewIdentityService(cfg.JWTSecret, cfg.JWTExpiry)

	pdfRenderer, err := service.NewPDFRenderer(cfg.CertificateFontPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PDF renderer")
	}
	certStorage, err := service.NewLocalCertificateStorage(cfg.CertificateDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize certificate storage")
	}
	certService := service.NewCertificateService(certRepo, pdfRenderer, certStorage, cfg.AppBaseURL, log)

	telemetryQueue := service.NewRedisTelemetryQueue(rdb)
	monitorPublisher := service.NewRedisMonitorPublisher(rdb, log)
	shuffler := service.NewShuffler(rand.NewSource(time.Now().UnixNano()))

	attemptService := service.NewAttemptService(
		examRepo, enrollmentRepo, attemptRepo, eventRepo, resultRepo,
		certService, telemetryQueue, monitorPublisher, shuffler, log,
	)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt:     handler.NewAttemptHandler(attemptService),
		Certificate: handler.NewCertificateHandler(certService),
		Monitor:     handler.NewMonitorHandler(rdb, examRepo, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	telemetryWorker := worker.NewTelemetryWorker(telemetryRepo, rdb, log)
	expiryWorker := worker.NewExpiryWorker(attemptService, cfg.ExpirySweepInterval, log)

	go telemetryWorker.Start(workerCtx)
	go expiryWorker.Start(workerCtx)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(identityService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
