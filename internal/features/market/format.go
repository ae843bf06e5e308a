package market

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUSD renders compact dollar amounts: 950, 12.3K, 4.5M, 1.2B.
func FormatUSD(value decimal.Decimal) string {
	v, _ := value.Float64()
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return sign + trimOne(v/1e9) + "B"
	case v >= 1e6:
		return sign + trimOne(v/1e6) + "M"
	case v >= 1e3:
		return sign + trimOne(v/1e3) + "K"
	}
	return sign + fmt.Sprintf("%.0f", v)
}

func trimOne(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// FormatPrice keeps four significant digits, which matters for memecoin
// prices far below one cent.
func FormatPrice(value decimal.Decimal) string {
	if value.IsZero() {
		return "0"
	}
	if value.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return value.StringFixed(2)
	}
	exp := 0
	for v := value.Abs(); v.LessThan(decimal.NewFromInt(1)); v = v.Shift(1) {
		exp++
	}
	return value.Round(int32(exp + 3)).String()
}
