// Package razorpay creates payment orders on the Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

var tracer = otel.Tracer("razorpay")

const serviceName = "razorpay"

// Client creates orders with basic auth. Order creation is not idempotent,
// so requests are never retried.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	keyID       string
	keySecret   string
	checkoutURL string
	cb          *gobreaker.CircuitBreaker
}

// NewClient creates a new Razorpay client.
func NewClient(httpClient *http.Client, baseURL, keyID, keySecret, checkoutURL string, cb *gobreaker.CircuitBreaker) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		keyID:       keyID,
		keySecret:   keySecret,
		checkoutURL: checkoutURL,
		cb:          cb,
	}
}

type createOrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// CreateOrder posts /v1/orders and returns the order with its payment link.
func (c *Client) CreateOrder(ctx context.Context, req domain.PaymentOrderRequest) (*domain.PaymentOrder, error) {
	ctx, span := tracer.Start(ctx, "RazorpayClient.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.amount", req.Amount),
		attribute.String("order.receipt", req.Receipt),
	)

	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	capture := 0
	if req.AutoCapture {
		capture = 1
	}
	payload, err := json.Marshal(createOrderRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		PaymentCapture: capture,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	order, err := resilience.Execute(c.cb, serviceName, func() (*createOrderResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.SetBasicAuth(c.keyID, c.keySecret)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("razorpay API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var out createOrderResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		if out.ID == "" {
			return nil, fmt.Errorf("razorpay returned an order without id")
		}
		return &out, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &domain.PaymentOrder{
		ID:     order.ID,
		Amount: order.Amount,
		Link:   c.paymentLink(order.ID),
	}, nil
}

func (c *Client) paymentLink(orderID string) string {
	u, err := url.Parse(c.checkoutURL)
	if err != nil {
		return c.checkoutURL + "?order_id=" + url.QueryEscape(orderID)
	}
	q := u.Query()
	q.Set("order_id", orderID)
	u.RawQuery = q.Encode()
	return u.String()
}
