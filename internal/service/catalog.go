package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/port"
)

// CatalogService serves product snapshots from a source through a TTL
// cache. Concurrent misses share a single fetch.
type CatalogService struct {
	source  port.Catalog
	cache   port.Cache[[]domain.Product]
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCatalogService creates the catalog service.
func NewCatalogService(
	source port.Catalog,
	cache port.Cache[[]domain.Product],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CatalogService {
	return &CatalogService{
		source:  source,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// Snapshot returns the current products.
func (c *CatalogService) Snapshot(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CatalogService.Snapshot")
	defer span.End()

	key := c.source.Name()
	span.SetAttributes(attribute.String("catalog.source", key))

	if cached, ok := c.cache.Get(ctx, key); ok {
		c.metrics.IncrCacheHit(key)
		return cached, nil
	}
	c.metrics.IncrCacheMiss(key)

	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.load(ctx)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("catalog.shared_fetch", shared))
	return v.([]domain.Product), nil
}

// Refresh reloads the snapshot regardless of the cache.
func (c *CatalogService) Refresh(ctx context.Context) ([]domain.Product, error) {
	v, err, _ := c.group.Do(c.source.Name(), func() (any, error) {
		return c.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Product), nil
}

func (c *CatalogService) load(ctx context.Context) ([]domain.Product, error) {
	key := c.source.Name()

	products, err := c.source.Products(ctx)
	if err != nil {
		c.metrics.IncrExternalError("catalog")
		c.logger.Warn("catalog fetch failed",
			zap.String("source", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("catalog %s: %w", key, err)
	}

	c.cache.Set(ctx, key, products)
	c.logger.Debug("catalog snapshot loaded",
		zap.String("source", key),
		zap.Int("products", len(products)),
	)
	return products, nil
}
