package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept on monetary amounts.
const Scale = 2

// QuantityScale is the number of decimal places kept on quantities.
const QuantityScale = 4

// maxExponent bounds the decimal exponent accepted from input. Rounding a
// value with a larger exponent materialises the full power of ten.
const maxExponent = 30

var currencyPrefixes = []string{"R$", "$", "BRL"}

// ParseDecimal reads a user-entered number accepting either "," or "." as the
// decimal separator. When both appear, the right-most one is the decimal
// separator and the other is treated as a thousands separator. A separator
// that repeats ("1.234.567") is always a thousands separator. Scientific
// notation is accepted only within maxExponent.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	for _, prefix := range currencyPrefixes {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t', '_':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero, false
	}
	return d, true
}

// ParseAny converts loosely typed values (JSON numbers, strings, ints) into a
// decimal. It reports false when the value is absent or not numeric.
func ParseAny(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case float64:
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case json.Number:
		return ParseDecimal(v.String())
	case string:
		return ParseDecimal(v)
	default:
		return decimal.Zero, false
	}
}

// Quantity parses a quantity. Non-numeric and negative input yields zero.
func Quantity(raw string) decimal.Decimal {
	d, ok := ParseDecimal(raw)
	if !ok {
		return decimal.Zero
	}
	return NonNegative(d).Round(QuantityScale)
}

// Amount parses a monetary input. Non-numeric and negative input yields zero.
func Amount(raw string) decimal.Decimal {
	d, ok := ParseDecimal(raw)
	if !ok {
		return decimal.Zero
	}
	return NonNegative(d)
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp bounds d to the closed interval [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// Round rounds a monetary amount to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}
