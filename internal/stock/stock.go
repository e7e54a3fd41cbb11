package stock

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

// Ref identifies a stock-keeping row: an item, optionally narrowed to a variation.
type Ref struct {
	ItemID      string `json:"item_id"`
	VariationID string `json:"variation_id,omitempty"`
}

// Candidate is a proposed quantity change on a cart line.
type Candidate struct {
	Ref           Ref
	ControlsStock bool
	CurrentQty    decimal.Decimal
	Delta         decimal.Decimal
	Available     decimal.Decimal
}

// Requested is the quantity the line would hold after the change.
func (c Candidate) Requested() decimal.Decimal {
	return c.CurrentQty.Add(c.Delta)
}

// Shortage describes one line that exceeds available stock.
type Shortage struct {
	ItemID      string          `json:"item_id"`
	VariationID string          `json:"variation_id,omitempty"`
	Available   decimal.Decimal `json:"available"`
	Requested   decimal.Decimal `json:"requested"`
}

// Check gates a quantity increase. Uncontrolled lines always pass; controlled
// lines pass only while current+delta stays within available.
func Check(c Candidate) error {
	if !c.ControlsStock {
		return nil
	}
	requested := c.Requested()
	if requested.LessThanOrEqual(c.Available) {
		return nil
	}
	return InsufficientStock(Shortage{
		ItemID:      c.Ref.ItemID,
		VariationID: c.Ref.VariationID,
		Available:   c.Available,
		Requested:   requested,
	})
}

// InsufficientStock builds the structured rejection for one or more shortages.
func InsufficientStock(shortages ...Shortage) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(shortages)
}

// Shortages extracts the shortage list from an InsufficientStock error
// anywhere in err's chain.
func Shortages(err error) []Shortage {
	for err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			return nil
		}
		if typed.Code() == pkgerrors.CodeInsufficientStock {
			list, _ := typed.Details().([]Shortage)
			return list
		}
		err = typed.Unwrap()
	}
	return nil
}
