package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/catalog"
	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/internal/stock"
)

// LineField names an editable field of a cart line.
type LineField string

const (
	FieldQuantity  LineField = "quantity"
	FieldUnitPrice LineField = "unit_price"
	FieldUnitCost  LineField = "unit_cost"
)

// Line is one entry of the cart. Prices are applied values, not live links to
// the catalog.
type Line struct {
	ID             uuid.UUID                  `json:"id"`
	ItemID         string                     `json:"item_id"`
	VariationID    string                     `json:"variation_id,omitempty"`
	Name           string                     `json:"name"`
	VariationLabel string                     `json:"variation_label,omitempty"`
	Unit           string                     `json:"unit,omitempty"`
	Quantity       decimal.Decimal            `json:"quantity"`
	UnitPrice      decimal.Decimal            `json:"unit_price"`
	UnitCost       decimal.Decimal            `json:"unit_cost"`
	ControlsStock  bool                       `json:"controls_stock"`
	Available      decimal.Decimal            `json:"available"`
	Composite      bool                       `json:"composite,omitempty"`
	Components     pricing.Kit                `json:"components,omitempty"`
	Promotion      *pricing.PromotionSnapshot `json:"promotion,omitempty"`
	ImageRef       string                     `json:"image_ref,omitempty"`
}

func newLine(tpl catalog.LineTemplate, qty decimal.Decimal) Line {
	return Line{
		ID:             uuid.New(),
		ItemID:         tpl.ItemID,
		VariationID:    tpl.VariationID,
		Name:           tpl.Name,
		VariationLabel: tpl.VariationLabel,
		Unit:           tpl.Unit,
		Quantity:       qty,
		UnitPrice:      tpl.UnitPrice,
		UnitCost:       tpl.UnitCost,
		ControlsStock:  tpl.ControlsStock,
		Available:      tpl.Available,
		Composite:      len(tpl.Components) > 0,
		Components:     tpl.Components.Clone(),
		Promotion:      tpl.Promotion,
		ImageRef:       tpl.ImageRef,
	}
}

// Ref is the stock row this line draws from.
func (l Line) Ref() stock.Ref {
	return stock.Ref{ItemID: l.ItemID, VariationID: l.VariationID}
}

// Total is unit price × quantity, unrounded.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// PriceLocked reports whether the price is derived from kit components.
func (l Line) PriceLocked() bool {
	return l.Composite && len(l.Components) > 0
}

func (l Line) clone() Line {
	l.Components = l.Components.Clone()
	if l.Promotion != nil {
		p := *l.Promotion
		l.Promotion = &p
	}
	return l
}

func (l *Line) applyKit(kit pricing.Kit) {
	l.Components = kit
	l.UnitPrice = kit.Price()
	l.UnitCost = kit.Cost()
}

func (l Line) pricingItem() pricing.Item {
	return pricing.Item{Quantity: l.Quantity, UnitPrice: l.UnitPrice, UnitCost: l.UnitCost}
}
