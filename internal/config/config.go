package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v9"
)

// Catalog sources.
const (
	CatalogStatic    = "static"
	CatalogCSV       = "csv"
	CatalogShopify   = "shopify"
	CatalogEmbedding = "embedding"
)

// Payment providers.
const (
	PaymentNone     = "none"
	PaymentRazorpay = "razorpay"
)

// Order ledgers.
const (
	LedgerNone     = "none"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Webhook
	VerifyToken  string        `env:"VERIFY_TOKEN,required,notEmpty"`
	EventTimeout time.Duration `env:"EVENT_TIMEOUT" envDefault:"30s"`

	// WhatsApp Cloud API
	WhatsAppPhoneNumberID string `env:"WHATSAPP_PHONE_NUMBER_ID,required,notEmpty"`
	WhatsAppAccessToken   string `env:"WHATSAPP_ACCESS_TOKEN,required,notEmpty"`
	WhatsAppAPIURL        string `env:"WHATSAPP_API_URL" envDefault:"https://graph.facebook.com"`
	WhatsAppAPIVersion    string `env:"WHATSAPP_API_VERSION" envDefault:"v19.0"`

	// Catalog
	CatalogSource      string        `env:"CATALOG_SOURCE" envDefault:"static"`
	CSVURL             string        `env:"CSV_URL"`
	ShopifyStoreURL    string        `env:"SHOPIFY_STORE_URL"`
	ShopifyAccessToken string        `env:"SHOPIFY_ACCESS_TOKEN"`
	ShopifyAPIVersion  string        `env:"SHOPIFY_API_VERSION" envDefault:"2024-01"`
	EmbeddingTablePath string        `env:"EMBEDDING_TABLE_PATH" envDefault:"embeddings.json"`
	CatalogCache       string        `env:"CATALOG_CACHE" envDefault:"memory"`
	CatalogCacheTTL    time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB" envDefault:"0"`

	// Matching
	MatchDescriptions bool    `env:"MATCH_DESCRIPTIONS" envDefault:"false"`
	EmbeddingMinScore float64 `env:"EMBEDDING_MIN_SCORE" envDefault:"0"`
	EmbeddingTopK     int     `env:"EMBEDDING_TOP_K" envDefault:"1"`

	// OpenAI embeddings
	OpenAIAPIKey         string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL        string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1/"`
	OpenAIEmbeddingModel string `env:"OPENAI_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	// Payment
	PaymentProvider     string  `env:"PAYMENT_PROVIDER" envDefault:"none"`
	RazorpayKeyID       string  `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret   string  `env:"RAZORPAY_KEY_SECRET"`
	RazorpayAPIURL      string  `env:"RAZORPAY_API_URL" envDefault:"https://api.razorpay.com"`
	RazorpayCheckoutURL string  `env:"RAZORPAY_CHECKOUT_URL" envDefault:"https://rzp.io/checkout"`
	RatePerUnit         float64 `env:"RATE_PER_UNIT" envDefault:"100"`
	Currency            string  `env:"CURRENCY" envDefault:"INR"`

	// Order ledger
	OrderLedger    string `env:"ORDER_LEDGER" envDefault:"none"`
	OrderLedgerDSN string `env:"ORDER_LEDGER_DSN"`

	// HTTP client
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// Resilience
	MaxRetries     int           `env:"MAX_RETRIES" envDefault:"3"`
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF" envDefault:"100ms"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"50"`

	// Observability
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the rules that span more than one field.
func (c *Config) Validate() error {
	switch c.CatalogSource {
	case CatalogStatic:
	case CatalogCSV:
		if c.CSVURL == "" {
			return fmt.Errorf("CSV_URL is required when CATALOG_SOURCE=csv")
		}
	case CatalogShopify:
		if c.ShopifyStoreURL == "" || c.ShopifyAccessToken == "" {
			return fmt.Errorf("SHOPIFY_STORE_URL and SHOPIFY_ACCESS_TOKEN are required when CATALOG_SOURCE=shopify")
		}
	case CatalogEmbedding:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when CATALOG_SOURCE=embedding")
		}
		if c.EmbeddingTopK < 1 {
			return fmt.Errorf("EMBEDDING_TOP_K must be at least 1")
		}
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource)
	}

	switch c.CatalogCache {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CATALOG_CACHE=redis")
		}
	default:
		return fmt.Errorf("unknown CATALOG_CACHE %q", c.CatalogCache)
	}

	switch c.PaymentProvider {
	case PaymentNone:
	case PaymentRazorpay:
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required when PAYMENT_PROVIDER=razorpay")
		}
		if c.RatePerUnit <= 0 {
			return fmt.Errorf("RATE_PER_UNIT must be positive")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.PaymentProvider)
	}

	switch c.OrderLedger {
	case LedgerNone:
	case LedgerSQLite, LedgerPostgres:
		if c.OrderLedgerDSN == "" {
			return fmt.Errorf("ORDER_LEDGER_DSN is required when ORDER_LEDGER=%s", c.OrderLedger)
		}
	default:
		return fmt.Errorf("unknown ORDER_LEDGER %q", c.OrderLedger)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1")
	}
	return nil
}
