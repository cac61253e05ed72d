package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jbaxter/flatledger/internal/config"
	"github.com/jbaxter/flatledger/internal/handler"
	"github.com/jbaxter/flatledger/internal/infra/cache"
	"github.com/jbaxter/flatledger/internal/infra/client"
	"github.com/jbaxter/flatledger/internal/infra/observability"
	"github.com/jbaxter/flatledger/internal/infra/resilience"
	"github.com/jbaxter/flatledger/internal/infra/supabase"
	"github.com/jbaxter/flatledger/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("bank_feed_url", cfg.BankFeedURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("sync_min_interval", cfg.SyncMinInterval),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.String("due_weekday", cfg.DueWeekday.String()),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "flatledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	feedCB := resilience.NewCircuitBreaker("bankfeed")
	storeCB := resilience.NewCircuitBreaker("supabase")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	feedClient := client.NewBankFeedClient(httpClient, cfg.BankFeedURL, cfg.BankFeedToken, feedCB, resilienceCfg)

	var store *supabase.Client
	if cfg.SupabaseURL != "" {
		store = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			storeCB,
			resilienceCfg,
			logger,
		)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
	} else {
		logger.Warn("Supabase not configured, API routes unavailable")
	}

	// --- Services ---
	var flatmateSvc *service.FlatmateService
	var ledgerSvc *service.LedgerService
	var syncSvc *service.SyncService
	var authSvc *service.AuthService
	if store != nil {
		flatmateSvc = service.NewFlatmateService(store, logger)
		ledgerSvc = service.NewLedgerService(store, metrics, logger, cfg.DueWeekday, cfg.AnalysisStartDate)
		syncSvc = service.NewSyncService(
			feedClient,
			store,
			cache.New[time.Time](cfg.SyncMinInterval),
			cfg.SyncMinInterval,
			metrics,
			logger,
		)
		authSvc = service.NewAuthService(store, store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	}

	// --- Router ---
	router := handler.NewRouter(flatmateSvc, ledgerSvc, syncSvc, authSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
