package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/config"
	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/handler"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/cache"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/catalog"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/embedder"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/ledger"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/razorpay"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/store"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/whatsapp"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
	"github.com/boddenberg/wa-commerce-bot/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("catalog_source", cfg.CatalogSource),
		zap.String("catalog_cache", cfg.CatalogCache),
		zap.Duration("catalog_cache_ttl", cfg.CatalogCacheTTL),
		zap.String("payment_provider", cfg.PaymentProvider),
		zap.String("order_ledger", cfg.OrderLedger),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("event_timeout", cfg.EventTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint, observability.ServiceName)
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

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	messenger := whatsapp.NewClient(
		httpClient,
		cfg.WhatsAppAPIURL,
		cfg.WhatsAppAPIVersion,
		cfg.WhatsAppPhoneNumberID,
		cfg.WhatsAppAccessToken,
		resilience.NewCircuitBreaker("whatsapp", logger),
		resilienceCfg,
	)

	var checks []handler.HealthCheck

	source, matcher, err := buildCatalog(cfg, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to build catalog", zap.Error(err))
	}

	// --- Catalog cache ---
	var snapshotCache port.Cache[[]domain.Product]
	if cfg.CatalogCache == "redis" {
		logger.Info("using Redis catalog cache", zap.String("redis_addr", cfg.RedisAddr))
		redisCache := cache.NewRedis[[]domain.Product](
			cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
			"catalog:",
			cfg.CatalogCacheTTL,
			logger,
		)
		snapshotCache = redisCache
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: redisCache.Ping})
	} else {
		snapshotCache = cache.New[[]domain.Product](cfg.CatalogCacheTTL)
	}

	// --- Payments ---
	var payments port.PaymentProvider
	if cfg.PaymentProvider == config.PaymentRazorpay {
		payments = razorpay.NewClient(
			httpClient,
			cfg.RazorpayAPIURL,
			cfg.RazorpayKeyID,
			cfg.RazorpayKeySecret,
			cfg.RazorpayCheckoutURL,
			resilience.NewCircuitBreaker("razorpay", logger),
		)
		logger.Info("online payments enabled", zap.String("provider", cfg.PaymentProvider))
	}

	// --- Order ledger ---
	var orders port.OrderRecorder
	if cfg.OrderLedger != config.LedgerNone {
		l, err := ledger.Open(context.Background(), cfg.OrderLedger, cfg.OrderLedgerDSN, ledger.Options{}, logger)
		if err != nil {
			logger.Fatal("failed to open order ledger", zap.Error(err))
		}
		defer l.Close()
		orders = l
		checks = append(checks, handler.HealthCheck{Name: "ledger", Ping: l.Ping, Required: true})
	}

	// --- Services ---
	catalogSvc := service.NewCatalogService(source, snapshotCache, metrics, logger)

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if products, err := catalogSvc.Refresh(warmCtx); err != nil {
		logger.Warn("catalog warm-up failed", zap.Error(err))
	} else {
		logger.Info("catalog loaded", zap.String("source", source.Name()), zap.Int("products", len(products)))
	}
	cancelWarm()

	flow := service.NewFlow(service.FlowDeps{
		Catalog:   catalogSvc,
		Matcher:   matcher,
		Sessions:  store.NewMemory(domain.Session.Clone),
		Profiles:  store.NewMemory[domain.Profile](nil),
		Locks:     store.NewKeyedLock(),
		Messenger: messenger,
		Payments:  payments,
		Orders:    orders,
		Metrics:   metrics,
		Logger:    logger,
	}, service.FlowConfig{
		RatePerUnit: cfg.RatePerUnit,
		Currency:    cfg.Currency,
		BagHandle:   catalog.BagHandle,
	})

	// --- Router ---
	router := handler.NewRouter(flow, handler.WebhookConfig{
		VerifyToken:    cfg.VerifyToken,
		EventTimeout:   cfg.EventTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	}, checks, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.EventTimeout + 5*time.Second,
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

// buildCatalog selects the catalog source and the matcher that goes with it.
func buildCatalog(cfg *config.Config, httpClient *http.Client, rc resilience.Config, logger *zap.Logger) (port.Catalog, port.Matcher, error) {
	keyword := service.KeywordMatcher{MatchDescriptions: cfg.MatchDescriptions}

	switch cfg.CatalogSource {
	case config.CatalogCSV:
		logger.Info("using spreadsheet catalog")
		cb := resilience.NewCircuitBreaker("catalog-csv", logger)
		return catalog.NewCSV(httpClient, cfg.CSVURL, cb, rc), keyword, nil

	case config.CatalogShopify:
		logger.Info("using Shopify catalog", zap.String("store", cfg.ShopifyStoreURL))
		cb := resilience.NewCircuitBreaker("catalog-shopify", logger)
		return catalog.NewShopify(httpClient, cfg.ShopifyStoreURL, cfg.ShopifyAPIVersion, cfg.ShopifyAccessToken, cb, rc), keyword, nil

	case config.CatalogEmbedding:
		table, err := catalog.LoadEmbeddingTable(cfg.EmbeddingTablePath)
		if err != nil {
			return nil, nil, err
		}
		if err := table.CheckModel(cfg.OpenAIEmbeddingModel); err != nil {
			return nil, nil, err
		}
		emb := embedder.NewEmbedder(
			httpClient,
			cfg.OpenAIAPIKey,
			cfg.OpenAIBaseURL,
			cfg.OpenAIEmbeddingModel,
			resilience.NewCircuitBreaker("openai", logger),
			rc,
		)
		logger.Info("using embedding catalog",
			zap.String("table", cfg.EmbeddingTablePath),
			zap.String("model", emb.Model()),
			zap.Int("dimensions", table.Dimensions()),
		)
		return table, service.NewEmbeddingMatcher(emb, cfg.EmbeddingTopK, cfg.EmbeddingMinScore), nil

	default:
		logger.Info("using built-in catalog")
		return catalog.NewStatic(), keyword, nil
	}
}
