// Command embed-catalog precomputes product vectors for CATALOG_SOURCE=embedding.
//
//	embed-catalog -source csv -out embeddings.json
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/wa-commerce-bot/internal/config"
	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/catalog"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/embedder"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
)

type embedConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OpenAIAPIKey         string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIBaseURL        string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1/"`
	OpenAIEmbeddingModel string `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	CSVURL             string `env:"CSV_URL"`
	ShopifyStoreURL    string `env:"SHOPIFY_STORE_URL"`
	ShopifyAccessToken string `env:"SHOPIFY_ACCESS_TOKEN"`
	ShopifyAPIVersion  string `env:"SHOPIFY_API_VERSION" envDefault:"2024-01"`

	HTTPTimeout    time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"200ms"`
}

func main() {
	source := flag.String("source", config.CatalogStatic, "catalog to embed: static, csv or shopify")
	out := flag.String("out", "embeddings.json", "output file")
	workers := flag.Int("workers", 4, "concurrent embedding requests")
	flag.Parse()

	_ = config.LoadDotEnv(".env")

	var cfg embedConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := run(context.Background(), cfg, *source, *out, *workers, logger); err != nil {
		logger.Fatal("embedding catalog failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg embedConfig, source, out string, workers int, logger *zap.Logger) error {
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	rc := resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff}

	var src port.Catalog
	switch source {
	case config.CatalogStatic:
		src = catalog.NewStatic()
	case config.CatalogCSV:
		if cfg.CSVURL == "" {
			return fmt.Errorf("CSV_URL is required for -source csv")
		}
		src = catalog.NewCSV(httpClient, cfg.CSVURL, resilience.NewCircuitBreaker("catalog-csv", logger), rc)
	case config.CatalogShopify:
		if cfg.ShopifyStoreURL == "" || cfg.ShopifyAccessToken == "" {
			return fmt.Errorf("SHOPIFY_STORE_URL and SHOPIFY_ACCESS_TOKEN are required for -source shopify")
		}
		src = catalog.NewShopify(httpClient, cfg.ShopifyStoreURL, cfg.ShopifyAPIVersion, cfg.ShopifyAccessToken,
			resilience.NewCircuitBreaker("catalog-shopify", logger), rc)
	default:
		return fmt.Errorf("unsupported source %q", source)
	}

	products, err := src.Products(ctx)
	if err != nil {
		return fmt.Errorf("loading %s catalog: %w", source, err)
	}
	logger.Info("catalog loaded", zap.String("source", source), zap.Int("products", len(products)))

	emb := embedder.NewEmbedder(httpClient, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbeddingModel,
		resilience.NewCircuitBreaker("openai", logger), rc)

	if err := embedAll(ctx, emb, products, workers); err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := catalog.WriteEmbeddingTable(f, emb.Model(), products); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("embedding table written", zap.String("path", out), zap.String("model", emb.Model()))
	return nil
}

// embedAll fills in Embedding for every product from its title and description.
func embedAll(ctx context.Context, emb port.Embedder, products []domain.Product, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i := range products {
		i := i
		g.Go(func() error {
			p := &products[i]
			vec, err := emb.Embed(ctx, strings.TrimSpace(p.Title+" "+p.Description))
			if err != nil {
				return fmt.Errorf("embedding %s: %w", p.Handle, err)
			}
			p.Embedding = vec
			return nil
		})
	}
	return g.Wait()
}
