package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dvloznov/statement-parser/internal/api/handlers"
	"github.com/dvloznov/statement-parser/internal/api/middleware"
	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/jobs/inmemory"
	"github.com/dvloznov/statement-parser/internal/logger"
	"github.com/dvloznov/statement-parser/internal/ocr/tesseract"
	"github.com/dvloznov/statement-parser/internal/pipeline"
)

func main() {
	cfg := config.Load()

	var (
		port    = flag.Int("port", cfg.API.Port, "HTTP server port (or set PORT env)")
		timeout = flag.Duration("timeout", 2*time.Minute, "Time limit for one synchronous parse")
	)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.TestMode {
		log.Warn().Msg("Test mode enabled - every request returns fixture data")
	}

	ctx := logger.WithContext(context.Background(), log)

	runner := pipeline.NewFromConfig(ctx, cfg, tesseract.New(cfg.OCR.Language, cfg.OCR.TessdataPrefix))

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobStore, inmemory.Options{
		BufferSize: cfg.API.JobQueueSize,
		Workers:    cfg.API.JobWorkers,
		MaxRetries: cfg.API.JobMaxRetries,
	})

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	statementsHandler := handlers.NewStatementsHandler(runner, jobQueue, cfg.API.MaxUploadBytes, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	log.Info().Int("workers", cfg.API.JobWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, statementsHandler.ProcessJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	mux := handlers.NewRouter(statementsHandler, jobsHandler)

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.RequestID(log)(
			middleware.Logger(log)(
				middleware.CORS(
					http.TimeoutHandler(mux, *timeout, `{"error":"Parsing timed out"}`),
				),
			),
		),
	)

	addr := ":" + strconv.Itoa(*port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: *timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish, then cancel anything still running.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
