package domain_test

import (
	"testing"

	"github.com/boddenberg/wa-commerce-bot/internal/domain"
)

func TestParseMinor(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"whole number", "99.00", 9900},
		{"with paise", "123.45", 12345},
		{"no decimals", "120", 12000},
		{"padded", " 7.5 ", 750},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := domain.ParseMinor(tt.input); got != tt.want {
				t.Errorf("ParseMinor(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatMinor(t *testing.T) {
	if got := domain.FormatMinor(30050, "INR"); got != "INR 300.50" {
		t.Errorf("unexpected format %q", got)
	}
	if got := domain.FormatMinor(-5, "INR"); got != "-INR 0.05" {
		t.Errorf("unexpected format %q", got)
	}
}

func TestChargeAmount(t *testing.T) {
	if got := domain.ChargeAmount(3, 100); got != 30000 {
		t.Errorf("expected 30000, got %d", got)
	}
	if got := domain.ChargeAmount(2.5, 80); got != 20000 {
		t.Errorf("expected 20000, got %d", got)
	}
}
