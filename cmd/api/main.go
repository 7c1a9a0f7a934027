package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/finance-assistant/internal/api"
	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/categorize"
	"github.com/dvloznov/finance-assistant/internal/chat"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/csvimport"
	"github.com/dvloznov/finance-assistant/internal/gcsuploader"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/jobs/inmemory"
	"github.com/dvloznov/finance-assistant/internal/llm"
	"github.com/dvloznov/finance-assistant/internal/logger"
	"github.com/dvloznov/finance-assistant/internal/pipeline"
	"github.com/dvloznov/finance-assistant/internal/store"
)

func main() {
	// Parse command-line flags
	var (
		configPath = flag.String("config", "", "YAML config file (or set CONFIG_FILE env)")
		port       = flag.String("port", "", "HTTP server port (overrides PORT)")
		bucket     = flag.String("bucket", "", "GCS bucket for archiving uploads (overrides GCS_BUCKET)")
		schedule   = flag.String("schedule", "", "cron schedule for background assignment (overrides AUTO_ASSIGN_SCHEDULE)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *bucket != "" {
		cfg.ArchiveBucket = *bucket
	}
	if *schedule != "" {
		cfg.AutoAssignSchedule = *schedule
	}

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Completion provider
	gemini, err := llm.NewGeminiCompleter(ctx, cfg.GeminiAPIKey, cfg.Model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create completion client")
	}
	completer := llm.WithTimeout(gemini, cfg.CompletionTimeout)

	transactions := store.New()
	assigner := categorize.NewClient(gemini,
		categorize.WithPacer(categorize.NewPacer(cfg.BatchDelay, cfg.BatchRatePerMinute)),
		categorize.WithTimeout(cfg.CompletionTimeout),
		categorize.WithLogger(log.With().Str("component", "categorize").Logger()),
	)
	chatService := chat.NewService(completer, transactions, log.With().Str("component", "chat").Logger())

	// Upload archiving is optional
	var archiver gcsuploader.Archiver
	if cfg.ArchiveBucket != "" {
		gcs, err := gcsuploader.NewGCSStorageService(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcs.Close()
		archiver = gcsuploader.NewBucketArchiver(gcs, cfg.ArchiveBucket)
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("Archiving uploads to GCS")
	} else {
		log.Warn().Msg("No GCS bucket configured - uploads will not be archived")
	}

	parser := csvimport.NewParser(csvimport.Profile{
		HeaderAnchor: cfg.CSV.HeaderAnchor,
		HeaderMarker: cfg.CSV.HeaderMarker,
		Delimiter:    cfg.CSV.DelimiterRune(),
	})
	upload := pipeline.NewUploadPipeline(parser, transactions, archiver, cfg.MaxUploadBytes)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	var scheduler *jobs.Scheduler
	if cfg.AutoAssignSchedule != "" {
		scheduler, err = jobs.NewScheduler(cfg.AutoAssignSchedule, jobQueue, cfg.BatchLimit, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scheduler")
		}
	}

	router := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(transactions, upload, assigner, jobQueue, cfg.BatchLimit, cfg.MaxUploadBytes, log),
		Chat:         handlers.NewChatHandler(chatService, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, cfg.AllowedOrigin, log)

	// Batches and chat wait on the provider, so the write timeout covers a
	// full batch at the configured timeout and pacing.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.BatchLimit+1) * (cfg.CompletionTimeout + cfg.BatchInterval()),
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Msg("Starting job worker")
		return jobQueue.Start(gctx, jobs.NewAssignHandler(assigner, transactions, log))
	})

	if scheduler != nil {
		g.Go(func() error {
			scheduler.Start(gctx)
			log.Info().Str("schedule", cfg.AutoAssignSchedule).Msg("Background assignment enabled")
			return nil
		})
	}

	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("model", cfg.Model).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		// Stop job queue and wait for in-flight jobs
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping job queue")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited")
}
