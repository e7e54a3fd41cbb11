package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrKitPriceLocked is returned when a kit price is edited while it has components.
var ErrKitPriceLocked = errors.New("kit price is derived from its components")

// Component is a catalog item inside a kit, with price and cost captured when
// it was added.
type Component struct {
	ItemID    string          `json:"item_id" validate:"required"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// Kit is the ordered component list of a composite line. Its price and cost
// are always the rollup of the components.
type Kit []Component

// Price is Σ(component unit price × quantity).
func (k Kit) Price() decimal.Decimal {
	total := decimal.Zero
	for _, c := range k {
		total = total.Add(c.UnitPrice.Mul(c.Quantity))
	}
	return total
}

// Cost is Σ(component unit cost × quantity).
func (k Kit) Cost() decimal.Decimal {
	total := decimal.Zero
	for _, c := range k {
		total = total.Add(c.UnitCost.Mul(c.Quantity))
	}
	return total
}

// Add appends c, or sums its quantity into an existing component of the same item.
func (k Kit) Add(c Component) Kit {
	out := k.Clone()
	for i := range out {
		if out[i].ItemID == c.ItemID {
			out[i].Quantity = out[i].Quantity.Add(c.Quantity)
			return out
		}
	}
	return append(out, c)
}

// Remove drops the component for itemID.
func (k Kit) Remove(itemID string) (Kit, bool) {
	out := make(Kit, 0, len(k))
	found := false
	for _, c := range k {
		if c.ItemID == itemID {
			found = true
			continue
		}
		out = append(out, c)
	}
	return out, found
}

// Resize sets the quantity of the component for itemID. A zero quantity removes it.
func (k Kit) Resize(itemID string, quantity decimal.Decimal) (Kit, bool) {
	if !quantity.IsPositive() {
		return k.Remove(itemID)
	}
	out := k.Clone()
	for i := range out {
		if out[i].ItemID == itemID {
			out[i].Quantity = quantity
			return out, true
		}
	}
	return out, false
}

// Clone returns a deep copy so callers never share backing arrays.
func (k Kit) Clone() Kit {
	if k == nil {
		return nil
	}
	out := make(Kit, len(k))
	copy(out, k)
	return out
}
