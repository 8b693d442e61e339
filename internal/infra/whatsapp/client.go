// Package whatsapp implements the outbound Messenger over the WhatsApp
// Cloud API (Graph API /messages endpoint).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

var tracer = otel.Tracer("whatsapp")

// Provider limits.
const (
	MaxTextRunes        = 4096
	MaxInteractiveRunes = 1024
	MaxCaptionRunes     = 1024
	MaxButtons          = 3
	MaxButtonTitleRunes = 20
	MaxButtonIDBytes    = 256
)

const serviceName = "whatsapp"

// Client sends messages through the Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiVersion    string
	phoneNumberID string
	accessToken   string
	cb            *gobreaker.CircuitBreaker
	cfg           resilience.Config
}

// NewClient creates a new WhatsApp Cloud API client.
func NewClient(httpClient *http.Client, baseURL, apiVersion, phoneNumberID, accessToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiVersion:    apiVersion,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		cb:            cb,
		cfg:           cfg,
	}
}

type outboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Image            *imageBody   `json:"image,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type imageBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type interactive struct {
	Type   string            `json:"type"`
	Body   interactiveBody   `json:"body"`
	Action interactiveAction `json:"action"`
}

type interactiveBody struct {
	Text string `json:"text"`
}

type interactiveAction struct {
	Buttons []replyButton `json:"buttons"`
}

type replyButton struct {
	Type  string      `json:"type"`
	Reply replyDetail `json:"reply"`
}

type replyDetail struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SendText sends a plain text message, truncated to the provider limit.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, "SendText", &outboundMessage{
		To:   to,
		Type: "text",
		Text: &textBody{Body: TruncateRunes(body, MaxTextRunes)},
	})
}

// SendImage sends an image by URL with an optional caption.
func (c *Client) SendImage(ctx context.Context, to, imageURL, caption string) error {
	return c.send(ctx, "SendImage", &outboundMessage{
		To:    to,
		Type:  "image",
		Image: &imageBody{Link: imageURL, Caption: TruncateRunes(caption, MaxCaptionRunes)},
	})
}

// SendButtons sends an interactive message with up to three reply buttons.
// Extra buttons are dropped; titles and ids are truncated.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []domain.Button) error {
	if len(buttons) == 0 {
		return c.SendText(ctx, to, body)
	}
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}

	reply := make([]replyButton, 0, len(buttons))
	for _, b := range buttons {
		reply = append(reply, replyButton{
			Type: "reply",
			Reply: replyDetail{
				ID:    TruncateBytes(b.ID, MaxButtonIDBytes),
				Title: TruncateRunes(b.Title, MaxButtonTitleRunes),
			},
		})
	}

	return c.send(ctx, "SendButtons", &outboundMessage{
		To:   to,
		Type: "interactive",
		Interactive: &interactive{
			Type:   "button",
			Body:   interactiveBody{Text: TruncateRunes(body, MaxInteractiveRunes)},
			Action: interactiveAction{Buttons: reply},
		},
	})
}

func (c *Client) send(ctx context.Context, op string, msg *outboundMessage) error {
	ctx, span := tracer.Start(ctx, "WhatsAppClient."+op)
	defer span.End()
	span.SetAttributes(attribute.String("message.type", msg.Type))

	msg.MessagingProduct = "whatsapp"
	msg.RecipientType = "individual"

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)

	_, err = resilience.Execute(c.cb, serviceName, func() (struct{}, error) {
		return struct{}{}, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.accessToken)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			statusErr := fmt.Errorf("whatsapp API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return resilience.Permanent(statusErr)
		})
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// TruncateBytes cuts s to at most n bytes without splitting a rune.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
