package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type webhook struct {
	processor EventProcessor
	cfg       WebhookConfig
	bulkhead  *resilience.Bulkhead
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func newWebhook(processor EventProcessor, cfg WebhookConfig, metrics *observability.Metrics, logger *zap.Logger) *webhook {
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 30 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 50
	}
	return &webhook{
		processor: processor,
		cfg:       cfg,
		bulkhead:  resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// GET /webhook: subscription verification
// ============================================================

func (h *webhook) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")

	if mode == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.VerifyToken)) != 1 {
		h.logger.Warn("webhook verification failed", zap.String("mode", mode))
		writeError(w, http.StatusForbidden, "verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, q.Get("hub.challenge"))
}

// ============================================================
// POST /webhook: inbound messages
// ============================================================

// receive always answers 200. Malformed payloads are dropped, failures are
// logged; the provider would otherwise redeliver the same message.
func (h *webhook) receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /webhook")
	defer span.End()

	var payload domain.WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		h.logger.Debug("malformed webhook body", zap.Error(err))
		h.ack(w)
		return
	}

	ev, ok := payload.FirstEvent()
	if !ok {
		h.logger.Debug("webhook without message")
		h.ack(w)
		return
	}

	kind := ev.Kind().String()
	h.metrics.IncrInboundEvent(kind)
	span.SetAttributes(attribute.String("event.kind", kind))

	// Processing outlives a dropped request connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.EventTimeout)
	defer cancel()

	if err := h.bulkhead.Acquire(ctx); err != nil {
		h.logger.Error("event dropped: too many concurrent events", zap.Error(err))
		h.ack(w)
		return
	}
	defer h.bulkhead.Release()

	if err := h.processor.Handle(ctx, ev); err != nil {
		span.RecordError(err)
		logProcessingError(err, h.logger)
	}
	h.ack(w)
}

func (h *webhook) ack(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
