package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// EventProcessor runs the conversation for one inbound event.
type EventProcessor interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// HealthCheck is a named dependency probe reported on /healthz. A failing
// Required check makes the bot unhealthy; any other failure degrades it.
type HealthCheck struct {
	Name     string
	Ping     func(ctx context.Context) error
	Required bool
}

// WebhookConfig configures the webhook endpoints.
type WebhookConfig struct {
	VerifyToken    string
	EventTimeout   time.Duration
	MaxConcurrency int
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(processor EventProcessor, cfg WebhookConfig, checks []HealthCheck, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(checks, metrics))
	r.Get("/readyz", readyzHandler(processor))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- WhatsApp webhook ---
	wh := newWebhook(processor, cfg, metrics, logger)
	r.Get("/webhook", wh.verify)
	r.Post("/webhook", wh.receive)

	return r
}

type healthResponse struct {
	domain.HealthStatus
	Metrics observability.Snapshot `json:"metrics"`
}

func healthzHandler(checks []HealthCheck, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: observability.ServiceName, Status: "healthy", LastChecked: now},
		}

		for _, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			sh := domain.ServiceHealth{
				Name:        c.Name,
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				sh.Status = "degraded"
				if c.Required {
					sh.Status = "unhealthy"
				}
				sh.Detail = err.Error()
			}
			services = append(services, sh)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		status := http.StatusOK
		if overallStatus == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, healthResponse{
			HealthStatus: domain.HealthStatus{Status: overallStatus, Services: services},
			Metrics:      metrics.Snapshot(),
		})
	}
}

func readyzHandler(processor EventProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if processor == nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
