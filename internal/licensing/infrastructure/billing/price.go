package billing

import (
	"fmt"
	"strings"
)

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

// FormatMicros renders a price in micro units, e.g. 2990000 EUR as "€2.99".
// Currencies without a known symbol are prefixed with their code.
func FormatMicros(micros int64, currency string) string {
	currency = strings.ToUpper(currency)
	whole := micros / 1_000_000
	cents := (micros % 1_000_000) / 10_000
	amount := fmt.Sprintf("%d.%02d", whole, cents)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + amount
	}
	if currency == "" {
		return amount
	}
	return currency + " " + amount
}
