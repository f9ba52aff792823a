package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benvon/tubecompanion/internal/config"
	"github.com/benvon/tubecompanion/internal/database"
	"github.com/benvon/tubecompanion/internal/handlers"
	"github.com/benvon/tubecompanion/internal/logger"
	"github.com/benvon/tubecompanion/internal/middleware"
	"github.com/benvon/tubecompanion/internal/queue"
	"github.com/benvon/tubecompanion/internal/services/ai"
	"github.com/benvon/tubecompanion/internal/services/chat"
	"github.com/benvon/tubecompanion/internal/services/oidc"
	"github.com/benvon/tubecompanion/internal/services/plan"
	"github.com/benvon/tubecompanion/internal/services/usage"
	"github.com/benvon/tubecompanion/internal/services/videos"
	"github.com/benvon/tubecompanion/internal/services/youtube"
	"github.com/benvon/tubecompanion/internal/telemetry"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName    = "tubecompanion-api"
	serviceVersion = "1.0.0"
	requestTimeout = 30 * time.Second
)

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override debug mode if flag is set
	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(serviceName, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// Sync fails on stderr in containers; nothing to do about it
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("free_daily_video_limit", cfg.FreeDailyVideoLimit),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), time.Minute)
	defer startCancel()

	// Initialize OpenTelemetry if enabled
	tracingEnabled := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(startCtx, telemetry.Options{
				ServiceName:    serviceName,
				ServiceVersion: serviceVersion,
				Endpoint:       cfg.OTELEndpoint,
				Insecure:       cfg.OTELInsecure,
				SampleRatio:    cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracingEnabled = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
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

	if cfg.RunMigration {
		if err := db.Migrate(); err != nil {
			zapLogger.Fatal("failed_to_run_migrations", zap.Error(err))
		}
		version, dirty, _ := db.MigrationVersion()
		zapLogger.Info("migrations_applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}

	// Connect to Redis for rate limiting; fall back to per-process buckets
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = middleware.NewRedisClient(startCtx, cfg.RedisURL)
		if err != nil {
			zapLogger.Warn("redis_unavailable_using_memory_rate_limit", zap.Error(err))
			redisClient = nil
		} else {
			zapLogger.Info("connected_to_redis")
			defer func() {
				if err := redisClient.Close(); err != nil {
					zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
				}
			}()
		}
	}
	rateStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateStore, cfg.RateLimit, zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	// Connect to RabbitMQ for summary jobs. Without it videos are stored but not summarized.
	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" {
		rabbit, err := connectQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		jobQueue = rabbit
		defer func() {
			if err := rabbit.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("rabbitmq_not_configured_summaries_disabled")
	}

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	videoRepo := database.NewVideoRepository(db)
	userVideoRepo := database.NewUserVideoRepository(db)
	transcriptRepo := database.NewTranscriptRepository(db)
	messageRepo := database.NewMessageRepository(db)
	tokenUsageRepo := database.NewTokenUsageRepository(db)
	feedbackRepo := database.NewFeedbackRepository(db)

	// Usage accounting
	prices, err := usage.LoadPriceTable(cfg.PricingFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_price_table", zap.Error(err))
	}
	ledger := usage.NewLedger(tokenUsageRepo, usage.NewCostModel(prices, zapLogger), zapLogger)

	policy := plan.NewPolicy(userRepo, userVideoRepo, cfg.FreeDailyVideoLimit, plan.WithLogger(zapLogger))

	// YouTube collaborators
	scraper := youtube.NewScraper(zapLogger)
	var details youtube.DetailsFetcher = scraper
	if cfg.YouTubeKey != "" {
		client, err := youtube.NewDataAPIClient(startCtx, cfg.YouTubeKey, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_create_youtube_client_using_scraper", zap.Error(err))
		} else {
			details = client
		}
	}

	videoService := videos.NewService(videos.Deps{
		Videos:      videoRepo,
		UserVideos:  userVideoRepo,
		Transcripts: transcriptRepo,
		Details:     details,
		Captions:    scraper,
		Quota:       policy,
		Jobs:        jobQueue,
		Logger:      zapLogger,
	})

	// Initialize AI provider
	aiProvider, err := createAIProvider(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Warn("failed_to_create_ai_provider_chat_disabled", zap.Error(err))
	}

	// Initialize OIDC
	oidcProvider, err := oidc.NewProvider(startCtx, oidc.Settings{
		Issuer:       cfg.OIDCIssuer,
		JWKSURL:      cfg.OIDCJWKSURL,
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		AuthURL:      cfg.OIDCAuthURL,
		TokenURL:     cfg.OIDCTokenURL,
		RedirectURL:  cfg.OIDCRedirectURL,
	}, resty.New().SetTimeout(10*time.Second))
	if err != nil {
		zapLogger.Fatal("failed_to_initialize_oidc_provider", zap.Error(err))
	}
	jwksManager := oidc.NewJWKSManager(oidcProvider.Endpoints().JWKSURI, time.Hour, &http.Client{Timeout: 10 * time.Second})
	verifier := oidc.NewVerifier(jwksManager, cfg.OIDCIssuer, cfg.OIDCClientID)

	var exchanger handlers.CodeExchanger
	if cfg.OIDCClientID != "" && cfg.OIDCRedirectURL != "" {
		exchanger = oidc.NewClient(oidcProvider)
	} else {
		zapLogger.Warn("oidc_client_not_configured_code_exchange_disabled")
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(oidcProvider, exchanger, verifier, userRepo, zapLogger)
	videoHandler := handlers.NewVideoHandler(videoService, messageRepo, zapLogger)
	planHandler := handlers.NewPlanHandler(policy, zapLogger)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackRepo, zapLogger)
	adminHandler := handlers.NewAdminHandler(ledger, feedbackRepo, zapLogger)

	checks := map[string]handlers.HealthCheckFunc{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if jobQueue != nil {
		checks["rabbitmq"] = jobQueue.HealthCheck
	}
	healthChecker := handlers.NewHealthChecker(checks, zapLogger)

	var chatHandler *handlers.ChatHandler
	if aiProvider != nil {
		orchestrator := chat.NewOrchestrator(policy, userVideoRepo, videoService, messageRepo, aiProvider, ledger, chat.Config{
			TranscriptCharLimit: cfg.ChatTranscriptCharLimit,
			StreamTimeout:       cfg.ChatStreamTimeout,
		}, zapLogger)
		chatHandler = handlers.NewChatHandler(orchestrator, zapLogger)
	}

	// Setup router. Middleware registered first wraps outermost.
	r := mux.NewRouter()
	if tracingEnabled {
		r.Use(telemetry.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)

	// Public routes (no rate limiting for health checks)
	healthChecker.RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()

	publicAuth := api.PathPrefix("/auth").Subrouter()
	publicAuth.Use(rateLimitMW)
	publicAuth.Use(middleware.Timeout(requestTimeout))
	authHandler.RegisterPublicRoutes(publicAuth)

	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.Auth(verifier, userRepo, zapLogger))
	authed.Use(rateLimitMW)

	// Streaming responses must not sit behind http.TimeoutHandler
	if chatHandler != nil {
		chatHandler.RegisterRoutes(authed)
	}

	timed := authed.NewRoute().Subrouter()
	timed.Use(middleware.Timeout(requestTimeout))
	authHandler.RegisterRoutes(timed.PathPrefix("/auth").Subrouter())
	videoHandler.RegisterRoutes(timed.PathPrefix("/videos").Subrouter())
	planHandler.RegisterRoutes(timed)
	feedbackHandler.RegisterRoutes(timed)

	admin := timed.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(cfg.IsAdmin))
	adminHandler.RegisterRoutes(admin)

	// CORS wraps the router so preflights are answered before route matching
	handler := middleware.CORS(cfg.CORSOrigins, zapLogger)(r)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Zero: chat streams are bounded by CHAT_STREAM_TIMEOUT instead
		WriteTimeout:   0,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Start DLQ garbage collector if the queue implementation supports it
	if dlqPurger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(dlqPurger, time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
		zapLogger.Info("started_dlq_garbage_collector",
			zap.Duration("interval", time.Hour),
			zap.Duration("retention", 24*time.Hour),
		)
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// connectQueue retries with exponential backoff to ride out RabbitMQ startup delays
func connectQueue(url string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	const initialDelay = 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q, nil
		}
		lastErr = err

		delay := min(initialDelay*time.Duration(1<<uint(attempt)), 30*time.Second)
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)
		time.Sleep(delay)
	}
	return nil, lastErr
}

// createAIProvider builds the configured provider from the registry
func createAIProvider(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) (ai.Provider, error) {
	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry)

	return registry.GetProvider(cfg.AIProvider, map[string]string{
		"api_key":  cfg.AIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
		"debug":    strconv.FormatBool(debugMode),
	}, zapLogger)
}
