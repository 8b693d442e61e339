package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseMinor converts a decimal amount in major units ("120.50") to minor
// units (12050). Empty or unparsable input yields 0.
func ParseMinor(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// FormatMinor renders minor units as a major-unit amount with currency code.
func FormatMinor(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%s %d.%02d", sign, currency, amount/100, amount%100)
}

// ChargeAmount is quantity × rate converted to minor units.
func ChargeAmount(quantity, ratePerUnit float64) int64 {
	return int64(math.Round(quantity * ratePerUnit * 100))
}
