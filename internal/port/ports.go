// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the conversation
// service from concrete catalog, messaging, payment and storage adapters.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

// Catalog supplies the current product snapshot.
type Catalog interface {
	// Name identifies the source; it keys the snapshot cache.
	Name() string
	Products(ctx context.Context) ([]domain.Product, error)
}

// Matcher ranks products of a snapshot against a free-text query,
// most relevant first. An empty result is not an error.
type Matcher interface {
	Match(ctx context.Context, query string, snapshot []domain.Product) ([]domain.Product, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Messenger delivers outbound messages to a phone number.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
	SendImage(ctx context.Context, to, imageURL, caption string) error
	SendButtons(ctx context.Context, to, body string, buttons []domain.Button) error
}

// PaymentProvider creates payment orders the user pays through a link.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, req domain.PaymentOrderRequest) (*domain.PaymentOrder, error)
}

// Store is a keyed value store. ok is false when the key is absent.
type Store[T any] interface {
	Get(ctx context.Context, key string) (value T, ok bool, err error)
	Put(ctx context.Context, key string, value T) error
	Delete(ctx context.Context, key string) error
}

// KeyLocker serializes work per key. The returned func releases the lock.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T)
	Delete(ctx context.Context, key string)
}

// OrderRecorder persists confirmed orders.
type OrderRecorder interface {
	Record(ctx context.Context, order *domain.Order) error
}

// OrderLister reads back recorded orders.
type OrderLister interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.Order, error)
}
