package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kordbank/ledger-go/internal/config"
	"github.com/kordbank/ledger-go/internal/domain"
	"github.com/kordbank/ledger-go/internal/handler"
	"github.com/kordbank/ledger-go/internal/infra/cache"
	"github.com/kordbank/ledger-go/internal/infra/observability"
	"github.com/kordbank/ledger-go/internal/infra/postgres"
	"github.com/kordbank/ledger-go/internal/infra/provider/bankrail"
	"github.com/kordbank/ledger-go/internal/infra/provider/cardnet"
	"github.com/kordbank/ledger-go/internal/infra/provider/cardproc"
	"github.com/kordbank/ledger-go/internal/infra/provider/corebank"
	"github.com/kordbank/ledger-go/internal/infra/resilience"
	"github.com/kordbank/ledger-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = godotenv.Load()

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("balance_cache_ttl", cfg.BalanceCacheTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ledgerd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := postgres.Connect(ctx, cfg.DatabaseURL, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Provider adapters, one breaker each ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	cardProc := cardproc.New(httpClient, cfg.CardProcessor, resilienceCfg,
		resilience.NewCircuitBreaker(string(domain.ProviderCardProcessor)), logger)
	bankRail := bankrail.New(httpClient, cfg.BankRail, resilienceCfg,
		resilience.NewCircuitBreaker(string(domain.ProviderBankRail)), logger)
	coreBank := corebank.New(httpClient, cfg.CoreBanking, resilienceCfg,
		resilience.NewCircuitBreaker(string(domain.ProviderCoreBanking)), logger)
	cardNet := cardnet.New(httpClient, cfg.CardNetwork, resilienceCfg,
		resilience.NewCircuitBreaker(string(domain.ProviderCardNetwork)), logger)

	// --- Service ---
	balanceCache := cache.New[int64](cfg.BalanceCacheTTL)
	svc := service.NewLedgerService(store, cardProc, bankRail, coreBank, cardNet, balanceCache, metrics, logger)

	// --- Router ---
	verifiers := &handler.Verifiers{
		CardProcessor: cardProc,
		BankRail:      bankRail,
		CoreBanking:   coreBank,
		CardNetwork:   cardNet,
	}
	router := handler.NewRouter(svc, verifiers, cfg.JWTSecret, metrics, logger)

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
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
