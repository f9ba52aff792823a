package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/tubecompanion/internal/config"
	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/benvon/tubecompanion/internal/services/videos"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/benvon/tubecompanion/internal/workers"
	"go.uber.org/zap"
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	backfillInterval := flag.Duration("backfill-interval", workers.DefaultBackfillInterval, "How often to re-enqueue videos missing generated content (0 disables)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger("tubecompanion-worker", debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
	)

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Initialize repositories
	videoRepo := database.NewVideoRepository(db)
	userVideoRepo := database.NewUserVideoRepository(db)
	transcriptRepo := database.NewTranscriptRepository(db)
	tokenUsageRepo := database.NewTokenUsageRepository(db)

	jobQueue, err := queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	// Create AI provider with logger
	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry)
	aiProvider, err := registry.GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.AIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
		"debug":    strconv.FormatBool(debugMode),
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_ai_provider", zap.Error(err))
	}
	zapLogger.Info("initialized_ai_provider",
		zap.String("provider", aiProvider.Name()),
		zap.String("model", aiProvider.Model()),
	)

	prices, err := usage.LoadPriceTable(cfg.PricingFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_price_table", zap.Error(err))
	}
	ledger := usage.NewLedger(tokenUsageRepo, usage.NewCostModel(prices, zapLogger), zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scraper := youtube.NewScraper(zapLogger)
	var details youtube.DetailsFetcher = scraper
	if cfg.YouTubeKey != "" {
		client, err := youtube.NewDataAPIClient(ctx, cfg.YouTubeKey, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_create_youtube_client_using_scraper", zap.Error(err))
		} else {
			details = client
		}
	}

	// The worker only resolves context; quota and job publishing stay with the API
	resolver := videos.NewService(videos.Deps{
		Videos:      videoRepo,
		UserVideos:  userVideoRepo,
		Transcripts: transcriptRepo,
		Details:     details,
		Captions:    scraper,
		Logger:      zapLogger,
	})

	summarizer := workers.NewSummarizer(aiProvider, resolver, userVideoRepo, ledger, jobQueue, workers.Config{
		SummaryWordLimit: cfg.SummaryWordLimit,
	}, zapLogger)

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}
	zapLogger.Info("worker_started")

	var wg sync.WaitGroup

	// Process messages
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range msgChan {
			if err := summarizer.ProcessJob(ctx, msg); err != nil {
				zapLogger.Error("failed_to_process_job",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)),
				)
			}
		}
		zapLogger.Info("message_channel_closed")
	}()

	// Handle errors
	go func() {
		for err := range errChan {
			zapLogger.Error("queue_error", zap.Error(err))
			// The consumer is gone; let the orchestrator restart the process
			cancel()
		}
	}()

	if *backfillInterval > 0 {
		backfill := workers.NewBackfill(userVideoRepo, jobQueue, zapLogger)
		go func() {
			if err := backfill.Start(ctx, *backfillInterval); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("backfill_stopped_with_error", zap.Error(err))
			}
		}()
	}

	// Wait for shutdown signal or consumer failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zapLogger.Info("shutdown_signal_received")
	case <-ctx.Done():
	}

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zapLogger.Warn("worker_shutdown_timed_out")
	}

	zapLogger.Info("worker_stopped")
}
