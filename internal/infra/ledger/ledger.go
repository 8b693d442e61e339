// Package ledger records confirmed orders in SQLite or PostgreSQL and
// exports them as an XLSX workbook.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

var tracer = otel.Tracer("ledger")

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options tune the connection.
type Options struct {
	// ConnectTimeout bounds the total time spent retrying the first connection.
	ConnectTimeout time.Duration
	MaxOpenConns   int
}

// Ledger is a SQL-backed order recorder.
type Ledger struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

// Open connects with exponential backoff, then applies migrations.
func Open(ctx context.Context, driver, dsn string, opts Options, logger *zap.Logger) (*Ledger, error) {
	const operation = "ledger.Open"

	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%s: unsupported driver %q", operation, driver)
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = time.Minute
	}

	retryPolicy := backoff.NewExponentialBackOff()
	retryPolicy.MaxElapsedTime = opts.ConnectTimeout
	retryPolicy.MaxInterval = 10 * time.Second

	logger.Info("connecting to order ledger", zap.String("driver", driver))

	var db *sqlx.DB
	err := backoff.RetryNotify(
		func() error {
			var err error
			db, err = sqlx.ConnectContext(ctx, driver, dsn)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			return nil
		},
		backoff.WithContext(retryPolicy, ctx),
		func(err error, next time.Duration) {
			logger.Warn("order ledger connection failed, retrying",
				zap.Error(err),
				zap.Duration("next_attempt_in", next))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect after retries: %w", operation, err)
	}

	switch {
	case driver == DriverSQLite:
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	case opts.MaxOpenConns > 0:
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := RunMigrations(ctx, db.DB, driver, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, driver: driver, logger: logger}, nil
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Ping reports whether the database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

type orderRow struct {
	ID             string  `db:"id"`
	Phone          string  `db:"phone"`
	ProductHandle  string  `db:"product_handle"`
	ProductTitle   string  `db:"product_title"`
	Variants       string  `db:"variants"`
	QuantityNote   string  `db:"quantity_note"`
	Quantity       float64 `db:"quantity"`
	Name           string  `db:"name"`
	Shop           string  `db:"shop"`
	Address        string  `db:"address"`
	PaymentMethod  string  `db:"payment_method"`
	AmountMinor    int64   `db:"amount_minor"`
	Currency       string  `db:"currency"`
	PaymentOrderID string  `db:"payment_order_id"`
	PaymentLink    string  `db:"payment_link"`
	CreatedAt      int64   `db:"created_at"`
}

const insertOrder = `
	INSERT INTO orders (
		id, phone, product_handle, product_title, variants, quantity_note, quantity,
		name, shop, address, payment_method, amount_minor, currency,
		payment_order_id, payment_link, created_at
	) VALUES (
		:id, :phone, :product_handle, :product_title, :variants, :quantity_note, :quantity,
		:name, :shop, :address, :payment_method, :amount_minor, :currency,
		:payment_order_id, :payment_link, :created_at
	)`

// Record inserts a confirmed order.
func (l *Ledger) Record(ctx context.Context, order *domain.Order) error {
	ctx, span := tracer.Start(ctx, "Ledger.Record")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID))

	variants, err := json.Marshal(order.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}
	if order.Variants == nil {
		variants = []byte("[]")
	}

	row := orderRow{
		ID:             order.ID,
		Phone:          order.Phone,
		ProductHandle:  order.ProductHandle,
		ProductTitle:   order.ProductTitle,
		Variants:       string(variants),
		QuantityNote:   order.QuantityNote,
		Quantity:       order.Quantity,
		Name:           order.Name,
		Shop:           order.Shop,
		Address:        order.Address,
		PaymentMethod:  order.PaymentMethod,
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		PaymentOrderID: order.PaymentOrderID,
		PaymentLink:    order.PaymentLink,
		CreatedAt:      order.CreatedAt.Unix(),
	}

	if _, err := l.db.NamedExecContext(ctx, insertOrder, row); err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}
	return nil
}

// ListSince returns orders created at or after since, oldest first.
func (l *Ledger) ListSince(ctx context.Context, since time.Time) ([]domain.Order, error) {
	ctx, span := tracer.Start(ctx, "Ledger.ListSince")
	defer span.End()

	query := l.db.Rebind(`
		SELECT id, phone, product_handle, product_title, variants, quantity_note, quantity,
		       name, shop, address, payment_method, amount_minor, currency,
		       payment_order_id, payment_link, created_at
		FROM orders
		WHERE created_at >= ?
		ORDER BY created_at, id`)

	var rows []orderRow
	if err := l.db.SelectContext(ctx, &rows, query, since.Unix()); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		var variants []string
		if r.Variants != "" {
			if err := json.Unmarshal([]byte(r.Variants), &variants); err != nil {
				l.logger.Warn("order has unreadable variants", zap.String("order_id", r.ID), zap.Error(err))
			}
		}
		orders = append(orders, domain.Order{
			ID:             r.ID,
			Phone:          r.Phone,
			ProductHandle:  r.ProductHandle,
			ProductTitle:   r.ProductTitle,
			Variants:       variants,
			QuantityNote:   r.QuantityNote,
			Quantity:       r.Quantity,
			Name:           r.Name,
			Shop:           r.Shop,
			Address:        r.Address,
			PaymentMethod:  r.PaymentMethod,
			AmountMinor:    r.AmountMinor,
			Currency:       r.Currency,
			PaymentOrderID: r.PaymentOrderID,
			PaymentLink:    r.PaymentLink,
			CreatedAt:      time.Unix(r.CreatedAt, 0).UTC(),
		})
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}
