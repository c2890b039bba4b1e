package domain

import (
	"regexp"
	"strings"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency carries its exchange rate relative to the reference currency.
type Currency struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Rate      float64 `json:"rate"`
	Reference bool    `json:"reference"`
}

// ToReference expresses amount, given in this currency, in reference units.
func (c Currency) ToReference(amount float64) float64 {
	return amount * c.Rate
}

// Convert moves amount from one currency to another using their rates.
func Convert(amount float64, from, to Currency) float64 {
	if from.Rate == to.Rate {
		return amount
	}
	return amount * to.Rate / from.Rate
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCode reports whether code is exactly three upper-case letters.
func ValidCode(code string) bool {
	return currencyCode.MatchString(code)
}
