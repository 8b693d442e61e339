// Package catalog implements the product catalog sources: a built-in
// static list, a published spreadsheet CSV, the Shopify Admin REST API and
// a precomputed embedding table.
package catalog

import (
	"context"
	"regexp"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

// BagHandle identifies the kraft bag product in the static catalog.
const BagHandle = "brown-kraft-paper-bags"

// BagImage is the shared image shown before bag variants.
const BagImage = "https://kosac.in/cdn/shop/files/bag_common_image.jpg"

// BagVariants are the sizes offered for kraft bags, in inches.
var BagVariants = []string{"3x5", "4x6", "5x7", "6x8", "7x9", "8x10"}

// Static serves a fixed product list.
type Static struct {
	products []domain.Product
}

// NewStatic returns a static source over products. With no products it
// serves the built-in Kosac list.
func NewStatic(products ...domain.Product) *Static {
	if len(products) == 0 {
		products = KosacProducts()
	}
	return &Static{products: products}
}

func (s *Static) Name() string { return "static" }

// Products returns a copy of the list.
func (s *Static) Products(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// KosacProducts is the built-in catalog.
func KosacProducts() []domain.Product {
	return []domain.Product{
		{
			Title:       "Brown Kraft Paper Bags",
			Description: "Eco-friendly brown kraft paper bags for groceries and takeaway, sold by weight.",
			Price:       12000,
			Unit:        domain.UnitWeight,
			ImageURL:    BagImage,
			Handle:      BagHandle,
			Variants:    append([]string(nil), BagVariants...),
		},
		{
			Title:       "Paper Cup 150ml",
			Description: "Single wall paper cups for tea and coffee.",
			Price:       4500,
			Unit:        domain.UnitBox,
			Handle:      "paper-cup-150ml",
		},
		{
			Title:       "Paper Cup 250ml",
			Description: "Single wall paper cups for coffee and cold drinks.",
			Price:       6000,
			Unit:        domain.UnitBox,
			Handle:      "paper-cup-250ml",
		},
		{
			Title:       "White Sweet Box",
			Description: "Food grade white boxes for sweets and bakery.",
			Price:       9000,
			Unit:        domain.UnitBox,
			Handle:      "white-sweet-box",
			Variants:    []string{"250g", "500g", "1kg"},
		},
		{
			Title:       "Butter Paper Sheets",
			Description: "Greaseproof butter paper for wrapping food.",
			Price:       15000,
			Unit:        domain.UnitWeight,
			Handle:      "butter-paper-sheets",
		},
	}
}

var weightPattern = regexp.MustCompile(`(?i)\d\s*(kg|kgs|g|gm|gms|gram|grams)\b`)

// InferUnit guesses the selling unit from a quantity column such as
// "5kg" or "100 pcs".
func InferUnit(text string) domain.Unit {
	if weightPattern.MatchString(text) {
		return domain.UnitWeight
	}
	return domain.UnitBox
}
