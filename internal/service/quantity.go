package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

var quantityItemRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-zA-Z]*)\s*(?:for\s+(.+))?$`)

// ParseQuantity parses a quantity answer such as "3kg for 3x5, 5kg for 4x6".
// Items are comma separated; each needs a leading positive number, an
// optional unit and an optional "for <variant>" naming one of the selected
// variants. The returned total is the sum of the item amounts.
func ParseQuantity(input string, selected []string) ([]domain.QuantityItem, float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, 0, &domain.ErrValidation{Field: "quantity", Message: "empty quantity"}
	}

	var (
		items []domain.QuantityItem
		total float64
	)
	for _, raw := range strings.Split(input, ",") {
		part := strings.TrimSpace(raw)
		if part == "" {
			continue
		}

		m := quantityItemRe.FindStringSubmatch(part)
		if m == nil {
			return nil, 0, &domain.ErrValidation{Field: "quantity", Message: "cannot read " + strconv.Quote(part)}
		}

		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil || amount <= 0 {
			return nil, 0, &domain.ErrValidation{Field: "quantity", Message: "amount must be positive in " + strconv.Quote(part)}
		}

		item := domain.QuantityItem{Amount: amount, Unit: strings.ToLower(m[2])}
		if ref := strings.TrimSpace(m[3]); ref != "" {
			v, ok := matchVariant(ref, selected)
			if !ok {
				return nil, 0, &domain.ErrValidation{Field: "quantity", Message: strconv.Quote(ref) + " is not a selected size"}
			}
			item.Variant = v
		}

		items = append(items, item)
		total += amount
	}

	if len(items) == 0 {
		return nil, 0, &domain.ErrValidation{Field: "quantity", Message: "empty quantity"}
	}
	return items, total, nil
}

func matchVariant(ref string, selected []string) (string, bool) {
	for _, v := range selected {
		if strings.EqualFold(strings.TrimSpace(v), ref) {
			return v, true
		}
	}
	return "", false
}
