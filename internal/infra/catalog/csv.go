package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

// CSVColumns are the expected header columns of the spreadsheet export.
var CSVColumns = []string{"name", "variantTitle", "sku", "dimensions", "quantity", "price", "imageUrl", "handle"}

// CSV fetches the catalog from a published spreadsheet export URL.
type CSV struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewCSV creates a CSV catalog source.
func NewCSV(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *CSV {
	return &CSV{httpClient: httpClient, url: url, cb: cb, cfg: cfg}
}

func (c *CSV) Name() string { return "csv" }

// Products downloads and parses the sheet.
func (c *CSV) Products(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "CSVCatalog.Products")
	defer span.End()

	products, err := resilience.Execute(c.cb, "catalog-csv", func() ([]domain.Product, error) {
		var out []domain.Product
		err := resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
			if err != nil {
				return resilience.Permanent(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				statusErr := fmt.Errorf("csv export returned status %d", resp.StatusCode)
				if resp.StatusCode >= 500 {
					return statusErr
				}
				return resilience.Permanent(statusErr)
			}

			parsed, err := ParseCSV(resp.Body)
			if err != nil {
				return resilience.Permanent(err)
			}
			out = parsed
			return nil
		})
		return out, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("catalog.products", len(products)))
	return products, nil
}

// ParseCSV reads the spreadsheet export. Columns are located by header
// name; rows sharing a handle fold into one product whose variants are the
// rows' variant titles (or dimensions when the title is empty).
func ParseCSV(r io.Reader) ([]domain.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	idx := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"name", "handle"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", col)
		}
	}

	field := func(row []string, col string) string {
		i, ok := idx[strings.ToLower(col)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var products []domain.Product
	byHandle := make(map[string]int)

	for _, row := range records[1:] {
		name := field(row, "name")
		handle := field(row, "handle")
		if name == "" && handle == "" {
			continue
		}
		if handle == "" {
			handle = slugify(name)
		}

		variant := field(row, "variantTitle")
		if variant == "" {
			variant = field(row, "dimensions")
		}

		if i, ok := byHandle[handle]; ok {
			if variant != "" && !contains(products[i].Variants, variant) {
				products[i].Variants = append(products[i].Variants, variant)
			}
			continue
		}

		p := domain.Product{
			Title:    name,
			Price:    domain.ParseMinor(field(row, "price")),
			Unit:     InferUnit(field(row, "quantity")),
			ImageURL: field(row, "imageUrl"),
			Handle:   handle,
		}
		if sku := field(row, "sku"); sku != "" {
			p.Description = "SKU " + sku
		}
		if variant != "" {
			p.Variants = []string{variant}
		}
		byHandle[handle] = len(products)
		products = append(products, p)
	}

	return products, nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
