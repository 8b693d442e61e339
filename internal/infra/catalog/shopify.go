package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

var tracer = otel.Tracer("catalog")

// maxShopifyPages bounds pagination against a misbehaving Link header.
const maxShopifyPages = 50

// Shopify reads products from the Shopify Admin REST API.
type Shopify struct {
	httpClient  *http.Client
	storeURL    string
	apiVersion  string
	accessToken string
	cb          *gobreaker.CircuitBreaker
	cfg         resilience.Config
}

// NewShopify creates a Shopify catalog source.
func NewShopify(httpClient *http.Client, storeURL, apiVersion, accessToken string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Shopify {
	return &Shopify{
		httpClient:  httpClient,
		storeURL:    strings.TrimRight(storeURL, "/"),
		apiVersion:  apiVersion,
		accessToken: accessToken,
		cb:          cb,
		cfg:         cfg,
	}
}

func (s *Shopify) Name() string { return "shopify" }

type shopifyProductsPage struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProduct struct {
	Title    string           `json:"title"`
	BodyHTML string           `json:"body_html"`
	Handle   string           `json:"handle"`
	Status   string           `json:"status"`
	Variants []shopifyVariant `json:"variants"`
	Image    *shopifyImage    `json:"image"`
	Images   []shopifyImage   `json:"images"`
}

type shopifyVariant struct {
	Title      string  `json:"title"`
	Price      string  `json:"price"`
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weight_unit"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

// Products fetches every page, following Link rel="next".
func (s *Shopify) Products(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "ShopifyCatalog.Products")
	defer span.End()

	next := fmt.Sprintf("%s/admin/api/%s/products.json?limit=250", s.storeURL, s.apiVersion)
	var products []domain.Product

	for page := 0; next != "" && page < maxShopifyPages; page++ {
		url := next
		result, err := resilience.Execute(s.cb, "catalog-shopify", func() (*pageResult, error) {
			var pr pageResult
			err := resilience.RetryWithBackoff(ctx, s.cfg, func() error {
				var err error
				pr, err = s.fetchPage(ctx, url)
				return err
			})
			return &pr, err
		})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		for _, p := range result.products {
			if p.Status != "" && p.Status != "active" {
				continue
			}
			products = append(products, toProduct(p))
		}
		next = result.next
	}

	span.SetAttributes(attribute.Int("catalog.products", len(products)))
	return products, nil
}

type pageResult struct {
	products []shopifyProduct
	next     string
}

func (s *Shopify) fetchPage(ctx context.Context, url string) (pageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pageResult{}, resilience.Permanent(err)
	}
	req.Header.Set("X-Shopify-Access-Token", s.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return pageResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("shopify API returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return pageResult{}, statusErr
		}
		return pageResult{}, resilience.Permanent(statusErr)
	}

	var body shopifyProductsPage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return pageResult{}, resilience.Permanent(fmt.Errorf("decode products: %w", err))
	}

	return pageResult{products: body.Products, next: NextPageURL(resp.Header.Get("Link"))}, nil
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// NextPageURL extracts the rel="next" target of a Link header.
func NextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if m := linkNextPattern.FindStringSubmatch(part); m != nil {
			return m[1]
		}
	}
	return ""
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func toProduct(p shopifyProduct) domain.Product {
	out := domain.Product{
		Title:       p.Title,
		Description: strings.Join(strings.Fields(tagPattern.ReplaceAllString(p.BodyHTML, " ")), " "),
		Handle:      p.Handle,
		Unit:        domain.UnitBox,
	}

	switch {
	case p.Image != nil && p.Image.Src != "":
		out.ImageURL = p.Image.Src
	case len(p.Images) > 0:
		out.ImageURL = p.Images[0].Src
	}

	if len(p.Variants) > 0 {
		first := p.Variants[0]
		out.Price = domain.ParseMinor(first.Price)
		if first.Weight > 0 && first.WeightUnit != "" {
			switch strings.ToLower(first.WeightUnit) {
			case "kg", "g":
				out.Unit = domain.UnitWeight
			}
		}
	}

	for _, v := range p.Variants {
		if v.Title == "" || v.Title == "Default Title" {
			continue
		}
		if !contains(out.Variants, v.Title) {
			out.Variants = append(out.Variants, v.Title)
		}
	}
	return out
}
