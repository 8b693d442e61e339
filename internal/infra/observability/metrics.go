package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	eventDuration  *prometheus.HistogramVec
	inboundEvents  *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	orders         *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		eventDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_event_duration_seconds",
				Help:    "Duration of inbound event processing by kind.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		inboundEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_inbound_events_total",
				Help: "Total inbound webhook events by kind.",
			},
			[]string{"kind"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_transitions_total",
				Help: "Total state machine transitions by handler.",
			},
			[]string{"handler"},
		),
		orders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_orders_total",
				Help: "Total confirmed orders by payment method.",
			},
			[]string{"payment"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_catalog_cache_hits_total",
				Help: "Total catalog snapshot cache hits.",
			},
			[]string{"source"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_catalog_cache_misses_total",
				Help: "Total catalog snapshot cache misses.",
			},
			[]string{"source"},
		),
	}
}

// RecordEventDuration records how long one inbound event took.
func (m *Metrics) RecordEventDuration(kind string, d time.Duration) {
	m.eventDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// IncrInboundEvent counts an inbound event. kind is text, button or ignored.
func (m *Metrics) IncrInboundEvent(kind string) {
	m.inboundEvents.WithLabelValues(kind).Inc()
}

// IncrTransition counts a dispatched transition handler.
func (m *Metrics) IncrTransition(handler string) {
	m.transitions.WithLabelValues(handler).Inc()
}

// IncrOrder counts a confirmed order.
func (m *Metrics) IncrOrder(payment string) {
	m.orders.WithLabelValues(payment).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(source string) {
	m.cacheHits.WithLabelValues(source).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(source string) {
	m.cacheMisses.WithLabelValues(source).Inc()
}

// Snapshot is a point-in-time view of the counters, served on /healthz.
type Snapshot struct {
	InboundEvents  float64 `json:"inbound_events"`
	Orders         float64 `json:"orders"`
	ExternalErrors float64 `json:"external_errors"`
	CacheHitRate   float64 `json:"catalog_cache_hit_rate"`
}

// Snapshot sums the counters across labels.
func (m *Metrics) Snapshot() Snapshot {
	hits := sumCounter(m.cacheHits)
	misses := sumCounter(m.cacheMisses)

	s := Snapshot{
		InboundEvents:  sumCounter(m.inboundEvents),
		Orders:         sumCounter(m.orders),
		ExternalErrors: sumCounter(m.externalErrors),
	}
	if hits+misses > 0 {
		s.CacheHitRate = hits / (hits + misses)
	}
	return s
}

// CounterValue returns the current value of a counter for a label.
func (m *Metrics) CounterValue(name, label string) float64 {
	var cv *prometheus.CounterVec
	switch name {
	case "inbound_events":
		cv = m.inboundEvents
	case "transitions":
		cv = m.transitions
	case "orders":
		cv = m.orders
	case "external_errors":
		cv = m.externalErrors
	case "cache_hits":
		cv = m.cacheHits
	case "cache_misses":
		cv = m.cacheMisses
	default:
		return 0
	}
	return getCounterValue(cv, label)
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func sumCounter(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 16)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err != nil {
			continue
		}
		if m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}
