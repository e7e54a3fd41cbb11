package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/money"
)

// Item is the pricing view of a cart line.
type Item struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
}

// Totals are the derived monetary values of a cart, rounded to cents.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	Freight         decimal.Decimal `json:"freight"`
	Total           decimal.Decimal `json:"total"`
	Cost            decimal.Decimal `json:"cost"`
}

// Compute derives totals from lines, a discount and freight. It never fails:
// negative quantities, prices and freight count as zero.
func Compute(items []Item, discount Discount, freight decimal.Decimal) Totals {
	subtotal := decimal.Zero
	cost := decimal.Zero
	for _, it := range items {
		qty := money.NonNegative(it.Quantity)
		subtotal = subtotal.Add(money.NonNegative(it.UnitPrice).Mul(qty))
		cost = cost.Add(money.NonNegative(it.UnitCost).Mul(qty))
	}
	subtotal = money.Round(subtotal)
	applied := money.Round(discount.Apply(subtotal))
	freight = money.Round(money.NonNegative(freight))

	return Totals{
		Subtotal:        subtotal,
		DiscountApplied: applied,
		Freight:         freight,
		Total:           subtotal.Sub(applied).Add(freight),
		Cost:            money.Round(cost),
	}
}

// Balance is max(0, total − paid).
func Balance(total, paid decimal.Decimal) decimal.Decimal {
	return money.NonNegative(total.Sub(paid))
}
