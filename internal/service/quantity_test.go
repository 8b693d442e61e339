package service_test

import (
	"errors"
	"testing"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
	"github.com/boddenberg/wa-commerce-bot/internal/service"
)

func TestParseQuantity(t *testing.T) {
	selected := []string{"3x5", "4x6"}

	tests := []struct {
		name      string
		input     string
		selected  []string
		wantTotal float64
		wantItems []domain.QuantityItem
	}{
		{
			name:      "single amount",
			input:     "3kg",
			selected:  selected,
			wantTotal: 3,
			wantItems: []domain.QuantityItem{{Amount: 3, Unit: "kg"}},
		},
		{
			name:      "per variant",
			input:     "3kg for 3x5, 5kg for 4x6",
			selected:  selected,
			wantTotal: 8,
			wantItems: []domain.QuantityItem{
				{Amount: 3, Unit: "kg", Variant: "3x5"},
				{Amount: 5, Unit: "kg", Variant: "4x6"},
			},
		},
		{
			name:      "decimal with space and no unit",
			input:     " 2.5 for 4X6 ",
			selected:  selected,
			wantTotal: 2.5,
			wantItems: []domain.QuantityItem{{Amount: 2.5, Variant: "4x6"}},
		},
		{
			name:      "boxes without variants",
			input:     "10 Boxes",
			wantTotal: 10,
			wantItems: []domain.QuantityItem{{Amount: 10, Unit: "boxes"}},
		},
		{
			name:      "trailing comma",
			input:     "4kg,",
			wantTotal: 4,
			wantItems: []domain.QuantityItem{{Amount: 4, Unit: "kg"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := service.ParseQuantity(tt.input, tt.selected)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("expected total %v, got %v", tt.wantTotal, total)
			}
			if len(items) != len(tt.wantItems) {
				t.Fatalf("expected %d items, got %d", len(tt.wantItems), len(items))
			}
			for i := range items {
				if items[i] != tt.wantItems[i] {
					t.Errorf("item %d: expected %+v, got %+v", i, tt.wantItems[i], items[i])
				}
			}
		})
	}
}

func TestParseQuantity_Rejects(t *testing.T) {
	selected := []string{"3x5", "4x6"}

	tests := []struct {
		name     string
		input    string
		selected []string
	}{
		{"empty", "", selected},
		{"no number", "some kg", selected},
		{"zero", "0kg", selected},
		{"second item without number", "3kg for 3x5, kg for 4x6", selected},
		{"unselected variant", "3kg for 8x10", selected},
		{"variant without selection", "3kg for 3x5", nil},
		{"only commas", ", ,", selected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := service.ParseQuantity(tt.input, tt.selected)
			var valErr *domain.ErrValidation
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if valErr.Field != "quantity" {
				t.Errorf("expected field quantity, got %s", valErr.Field)
			}
		})
	}
}
