package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/handler"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/cache"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/catalog"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/observability"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/store"
	"github.com/boddenberg/wa-commerce-bot/internal/service"

	"go.uber.org/zap"
)

const verifyToken = "s3cret"

// --- Mocks ---

type mockProcessor struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
	ctxErr error
}

func (m *mockProcessor) Handle(ctx context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	m.ctxErr = ctx.Err()
	return m.err
}

type nopMessenger struct{ sent int }

func (m *nopMessenger) SendText(context.Context, string, string) error { m.sent++; return nil }
func (m *nopMessenger) SendImage(context.Context, string, string, string) error {
	m.sent++
	return nil
}
func (m *nopMessenger) SendButtons(context.Context, string, string, []domain.Button) error {
	m.sent++
	return nil
}

// --- Helpers ---

func newRouter(p handler.EventProcessor, checks ...handler.HealthCheck) (http.Handler, *observability.Metrics) {
	metrics := observability.NewMetrics()
	cfg := handler.WebhookConfig{VerifyToken: verifyToken, EventTimeout: time.Second, MaxConcurrency: 4}
	return handler.NewRouter(p, cfg, checks, metrics, zap.NewNop()), metrics
}

func post(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func textPayload(from, body string) string {
	return `{"entry":[{"changes":[{"value":{"messages":[{"from":"` + from + `","type":"text","text":{"body":"` + body + `"}}]}}]}]}`
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	router, _ := newRouter(&mockProcessor{},
		handler.HealthCheck{Name: "ledger", Ping: func(context.Context) error { return nil }},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status   string                 `json:"status"`
		Services []domain.ServiceHealth `json:"services"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || len(body.Services) != 2 {
		t.Errorf("unexpected health %+v", body)
	}
}

func TestHealthz_DegradedDependency(t *testing.T) {
	router, _ := newRouter(&mockProcessor{},
		handler.HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"status":"degraded"`) {
		t.Errorf("expected degraded status, got %s", rec.Body.String())
	}
}

func TestHealthz_RequiredDependencyDown(t *testing.T) {
	router, _ := newRouter(&mockProcessor{},
		handler.HealthCheck{Name: "redis", Ping: func(context.Context) error { return nil }},
		handler.HealthCheck{Name: "ledger", Ping: func(context.Context) error { return errors.New("database is closed") }, Required: true},
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"unhealthy"`) {
		t.Errorf("expected unhealthy status, got %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "database is closed") {
		t.Errorf("expected failure detail, got %s", rec.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newRouter(&mockProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestPing(t *testing.T) {
	router, _ := newRouter(&mockProcessor{})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, metrics := newRouter(&mockProcessor{})
	metrics.IncrInboundEvent("text")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bot_inbound_events_total") {
		t.Error("expected bot metrics in exposition")
	}
}

func TestWebhookVerify(t *testing.T) {
	router, _ := newRouter(&mockProcessor{})

	tests := []struct {
		name     string
		query    string
		wantCode int
		wantBody string
	}{
		{"valid", "hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"missing mode", "hub.verify_token=s3cret&hub.challenge=12345", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected challenge %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestWebhookReceive_TextAndButton(t *testing.T) {
	p := &mockProcessor{}
	router, metrics := newRouter(p)

	rec := post(router, textPayload("919800000001", "hi"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	button := `{"entry":[{"changes":[{"value":{"messages":[{"from":"919800000001","type":"interactive",
		"interactive":{"type":"button_reply","button_reply":{"id":"select_bags","title":"Bags"}}}]}}]}]}`
	post(router, button)

	if len(p.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(p.events))
	}
	if p.events[0].Text != "hi" || p.events[1].ButtonID != "select_bags" {
		t.Errorf("unexpected events %+v", p.events)
	}
	if v := metrics.CounterValue("inbound_events", "button"); v != 1 {
		t.Errorf("expected 1 button event, got %v", v)
	}
}

func TestWebhookReceive_AlwaysOK(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"no entry", `{"entry":[]}`},
		{"no messages", `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`},
		{"missing from", `{"entry":[{"changes":[{"value":{"messages":[{"text":{"body":"hi"}}]}}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProcessor{}
			router, _ := newRouter(p)

			rec := post(router, tt.body)
			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
			if len(p.events) != 0 {
				t.Errorf("expected no processing, got %d events", len(p.events))
			}
		})
	}
}

func TestWebhookReceive_ProcessingErrorStillOK(t *testing.T) {
	p := &mockProcessor{err: &domain.ErrCircuitOpen{Service: "whatsapp"}}
	router, _ := newRouter(p)

	rec := post(router, textPayload("919800000001", "hi"))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestWebhookReceive_DetachedFromRequestContext(t *testing.T) {
	p := &mockProcessor{}
	router, _ := newRouter(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textPayload("919800000001", "hi"))).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if len(p.events) != 1 {
		t.Fatalf("expected event processed, got %d", len(p.events))
	}
	if p.ctxErr != nil {
		t.Errorf("expected live context, got %v", p.ctxErr)
	}
}

func TestWebhookReceive_MalformedEventLeavesStoresUntouched(t *testing.T) {
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	sessions := store.NewMemory(domain.Session.Clone)
	profiles := store.NewMemory[domain.Profile](nil)
	messenger := &nopMessenger{}

	flow := service.NewFlow(service.FlowDeps{
		Catalog:   service.NewCatalogService(catalog.NewStatic(), cache.New[[]domain.Product](time.Minute), metrics, logger),
		Matcher:   service.KeywordMatcher{},
		Sessions:  sessions,
		Profiles:  profiles,
		Locks:     store.NewKeyedLock(),
		Messenger: messenger,
		Metrics:   metrics,
		Logger:    logger,
	}, service.FlowConfig{RatePerUnit: 100, Currency: "INR", BagHandle: catalog.BagHandle})

	cfg := handler.WebhookConfig{VerifyToken: verifyToken, EventTimeout: time.Second}
	router := handler.NewRouter(flow, cfg, nil, metrics, logger)

	for _, body := range []string{`{"entry":`, `{"entry":[{"changes":[{"value":{"messages":[{"text":{"body":"hi"}}]}}]}]}`} {
		if rec := post(router, body); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	}

	if sessions.Len() != 0 || profiles.Len() != 0 {
		t.Errorf("expected empty stores, got %d sessions and %d profiles", sessions.Len(), profiles.Len())
	}
	if messenger.sent != 0 {
		t.Errorf("expected no replies, got %d", messenger.sent)
	}

	// a well-formed event does reach the flow
	post(router, `{"entry":[{"changes":[{"value":{"messages":[{"from":"919800000001","interactive":{"button_reply":{"id":"select_bags"}}}]}}]}]}`)
	if sessions.Len() != 1 {
		t.Errorf("expected a session after select_bags, got %d", sessions.Len())
	}
}
