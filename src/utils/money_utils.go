package utils

import (
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount with thousands separators and two
// decimals, e.g. 1234.5 -> "1,234.50".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return humanize.FormatFloat("#,###.##", f)
}

// FormatMoney prefixes FormatAmount with the currency code: "PHP 1,234.50".
func FormatMoney(currency string, d decimal.Decimal) string {
	return currency + " " + FormatAmount(d)
}

// FormatPlain renders an amount with two decimals and no grouping, which is
// how confirmation messages quote amounts ("PHP 250.00").
func FormatPlain(currency string, d decimal.Decimal) string {
	return currency + " " + d.StringFixed(2)
}
