package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("VERIFY_TOKEN", "verify-me")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "1234")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.CatalogSource != config.CatalogStatic {
		t.Errorf("expected static catalog, got %q", cfg.CatalogSource)
	}
	if cfg.PaymentProvider != config.PaymentNone {
		t.Errorf("expected no payment provider, got %q", cfg.PaymentProvider)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("expected 10s http timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.EmbeddingTopK != 1 {
		t.Errorf("expected top-k 1, got %d", cfg.EmbeddingTopK)
	}
	if cfg.Currency != "INR" {
		t.Errorf("expected INR, got %q", cfg.Currency)
	}
}

func TestLoad_MissingVerifyToken(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "")
	os.Unsetenv("VERIFY_TOKEN")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "1234")
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")

	_, err := config.Load()
	if err == nil {
		t.Fatal("expected error when VERIFY_TOKEN is missing")
	}
	if !strings.Contains(err.Error(), "VERIFY_TOKEN") {
		t.Errorf("expected error to name VERIFY_TOKEN, got %v", err)
	}
}

func TestLoad_RazorpayNeedsCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("PAYMENT_PROVIDER", "razorpay")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when razorpay credentials are missing")
	}

	t.Setenv("RAZORPAY_KEY_ID", "rzp_test")
	t.Setenv("RAZORPAY_KEY_SECRET", "secret")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.RatePerUnit != 100 {
		t.Errorf("expected default rate 100, got %v", cfg.RatePerUnit)
	}
}

func TestValidate_Rules(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			CatalogSource:   config.CatalogStatic,
			CatalogCache:    "memory",
			PaymentProvider: config.PaymentNone,
			OrderLedger:     config.LedgerNone,
			EmbeddingTopK:   1,
			RatePerUnit:     100,
			MaxConcurrency:  50,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr bool
	}{
		{"defaults", func(c *config.Config) {}, false},
		{"unknown catalog", func(c *config.Config) { c.CatalogSource = "ftp" }, true},
		{"csv without url", func(c *config.Config) { c.CatalogSource = config.CatalogCSV }, true},
		{"csv with url", func(c *config.Config) {
			c.CatalogSource = config.CatalogCSV
			c.CSVURL = "https://example.com/sheet.csv"
		}, false},
		{"shopify without token", func(c *config.Config) {
			c.CatalogSource = config.CatalogShopify
			c.ShopifyStoreURL = "https://shop.example.com"
		}, true},
		{"embedding without key", func(c *config.Config) { c.CatalogSource = config.CatalogEmbedding }, true},
		{"redis without addr", func(c *config.Config) { c.CatalogCache = "redis" }, true},
		{"sqlite without dsn", func(c *config.Config) { c.OrderLedger = config.LedgerSQLite }, true},
		{"unknown ledger", func(c *config.Config) { c.OrderLedger = "mongo" }, true},
		{"negative retries", func(c *config.Config) { c.MaxRetries = -1 }, true},
		{"zero concurrency", func(c *config.Config) { c.MaxConcurrency = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "DOTENV_TEST_NEW=from-file\nDOTENV_TEST_EXISTING=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOTENV_TEST_EXISTING", "from-env")
	t.Cleanup(func() { os.Unsetenv("DOTENV_TEST_NEW") })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("DOTENV_TEST_NEW"); got != "from-file" {
		t.Errorf("expected value from file, got %q", got)
	}
	if got := os.Getenv("DOTENV_TEST_EXISTING"); got != "from-env" {
		t.Errorf("expected env to take precedence, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}
