// Command orders-export writes confirmed orders from the ledger to an XLSX workbook.
//
//	orders-export -driver sqlite -dsn orders.db -since 168h -out orders.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"go.uber.org/zap"

	"github.com/boddenberg/wa-commerce-bot/internal/config"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/ledger"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
)

type exportConfig struct {
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	OrderLedger    string `env:"ORDER_LEDGER" envDefault:"sqlite"`
	OrderLedgerDSN string `env:"ORDER_LEDGER_DSN"`
}

func main() {
	_ = config.LoadDotEnv(".env")

	var cfg exportConfig
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	driver := flag.String("driver", cfg.OrderLedger, "ledger driver: sqlite or postgres")
	dsn := flag.String("dsn", cfg.OrderLedgerDSN, "ledger DSN")
	since := flag.Duration("since", 30*24*time.Hour, "export orders newer than this")
	out := flag.String("out", "orders.xlsx", "output workbook")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if *dsn == "" {
		logger.Fatal("a ledger DSN is required (-dsn or ORDER_LEDGER_DSN)")
	}

	ctx := context.Background()
	l, err := ledger.Open(ctx, *driver, *dsn, ledger.Options{ConnectTimeout: 30 * time.Second}, logger)
	if err != nil {
		logger.Fatal("opening ledger failed", zap.Error(err))
	}
	defer l.Close()

	n, err := export(ctx, l, time.Now().Add(-*since), *out)
	if err != nil {
		logger.Fatal("export failed", zap.Error(err))
	}
	logger.Info("orders exported", zap.Int("orders", n), zap.String("path", *out))
}

func export(ctx context.Context, orders port.OrderLister, since time.Time, out string) (int, error) {
	list, err := orders.ListSince(ctx, since)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	if err := ledger.ExportXLSX(f, list); err != nil {
		f.Close()
		return 0, fmt.Errorf("writing workbook: %w", err)
	}
	return len(list), f.Close()
}
