package razorpay_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/razorpay"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

func TestCreateOrder_Success(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test" || pass != "shh" {
			t.Errorf("unexpected basic auth %q/%q", user, pass)
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]any{
			"id": "order_ABC", "amount": 30000, "currency": "INR", "status": "created",
		})
	}))
	defer srv.Close()

	c := razorpay.NewClient(srv.Client(), srv.URL, "rzp_test", "shh", "https://pay.example.com/checkout",
		resilience.NewCircuitBreaker("razorpay-test", nil))

	order, err := c.CreateOrder(context.Background(), domain.PaymentOrderRequest{
		Amount: 30000, Currency: "INR", Receipt: "rcpt_1", AutoCapture: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if order.ID != "order_ABC" {
		t.Errorf("expected order_ABC, got %q", order.ID)
	}
	if order.Link != "https://pay.example.com/checkout?order_id=order_ABC" {
		t.Errorf("unexpected link %q", order.Link)
	}
	if body["amount"].(float64) != 30000 || body["payment_capture"].(float64) != 1 || body["receipt"] != "rcpt_1" {
		t.Errorf("unexpected request body %v", body)
	}
}

func TestCreateOrder_NotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := razorpay.NewClient(srv.Client(), srv.URL, "k", "s", "https://pay.example.com",
		resilience.NewCircuitBreaker("razorpay-retry", nil))

	_, err := c.CreateOrder(context.Background(), domain.PaymentOrderRequest{Amount: 100, Currency: "INR"})
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", calls)
	}
}

func TestCreateOrder_RejectsNonPositiveAmount(t *testing.T) {
	c := razorpay.NewClient(http.DefaultClient, "http://unused", "k", "s", "https://pay.example.com",
		resilience.NewCircuitBreaker("razorpay-amount", nil))

	_, err := c.CreateOrder(context.Background(), domain.PaymentOrderRequest{Amount: 0})
	var v *domain.ErrValidation
	if !errors.As(err, &v) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
