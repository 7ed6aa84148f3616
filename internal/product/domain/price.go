package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPrice renders an amount the way Brazilian buyers read it, for
// example "R$ 1.234,50". Other currencies are prefixed with their code.
func FormatPrice(amount decimal.Decimal, currency string) string {
	fixed := amount.Round(2).StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	value := grouped.String() + "," + frac
	if negative {
		value = "-" + value
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch currency {
	case "", "BRL":
		return "R$ " + value
	default:
		return currency + " " + value
	}
}
