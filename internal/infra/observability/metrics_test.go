package observability_test

import (
	"testing"

	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
)

func TestMetrics_CounterValue(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrOrder("Cash on Delivery")
	m.IncrOrder("Cash on Delivery")
	m.IncrOrder("Online")

	if got := m.CounterValue("orders", "Cash on Delivery"); got != 2 {
		t.Errorf("expected 2 COD orders, got %v", got)
	}
	if got := m.CounterValue("orders", "Online"); got != 1 {
		t.Errorf("expected 1 online order, got %v", got)
	}
	if got := m.CounterValue("unknown", "x"); got != 0 {
		t.Errorf("expected 0 for unknown counter, got %v", got)
	}
}

func TestMetrics_Snapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrInboundEvent("text")
	m.IncrInboundEvent("button")
	m.IncrInboundEvent("ignored")
	m.IncrExternalError("whatsapp")
	m.IncrCacheHit("static")
	m.IncrCacheHit("static")
	m.IncrCacheHit("static")
	m.IncrCacheMiss("static")

	s := m.Snapshot()
	if s.InboundEvents != 3 {
		t.Errorf("expected 3 inbound events, got %v", s.InboundEvents)
	}
	if s.ExternalErrors != 1 {
		t.Errorf("expected 1 external error, got %v", s.ExternalErrors)
	}
	if s.CacheHitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %v", s.CacheHitRate)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrOrder("Online")

	if got := b.CounterValue("orders", "Online"); got != 0 {
		t.Errorf("expected registries to be independent, got %v", got)
	}
}
