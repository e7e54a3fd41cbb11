package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/money"
)

var hundred = decimal.NewFromInt(100)

// Discount is a cart-level discount as entered by the operator.
type Discount struct {
	Type  enums.DiscountType `json:"type"`
	Value decimal.Decimal    `json:"value"`
}

// NoDiscount is the default discount of a fresh cart.
func NoDiscount() Discount {
	return Discount{Type: enums.DiscountPercent, Value: decimal.Zero}
}

// ParseDiscount builds a discount from raw form input. An unknown type falls
// back to percent and a negative or non-numeric value becomes zero.
func ParseDiscount(kind, raw string) Discount {
	t, err := enums.ParseDiscountType(kind)
	if err != nil {
		t = enums.DiscountPercent
	}
	return Discount{Type: t, Value: money.Amount(raw)}
}

// Normalize coerces an externally supplied discount into a valid one.
func (d Discount) Normalize() Discount {
	if !d.Type.IsValid() {
		d.Type = enums.DiscountPercent
	}
	d.Value = money.NonNegative(d.Value)
	return d
}

// Apply returns the discount amount for subtotal, clamped to [0, subtotal].
func (d Discount) Apply(subtotal decimal.Decimal) decimal.Decimal {
	d = d.Normalize()
	subtotal = money.NonNegative(subtotal)
	raw := d.Value
	if d.Type == enums.DiscountPercent {
		raw = subtotal.Mul(d.Value).Div(hundred)
	}
	return money.Clamp(raw, decimal.Zero, subtotal)
}
