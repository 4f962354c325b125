package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount normalizes a spreadsheet cell into an amount rounded to two
// decimal places. Thousands separators and a currency prefix are stripped;
// a leading minus marks a credit note. Empty or non-numeric input yields
// zero: partial exports routinely leave amount columns blank.
func ParseAmount(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x.Round(2)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case float64:
		return decimal.NewFromFloat(x).Round(2)
	case float32:
		return decimal.NewFromFloat32(x).Round(2)
	case string:
		return parseAmountString(x)
	default:
		return parseAmountString(fmt.Sprint(x))
	}
}

func parseAmountString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "NT$")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}
