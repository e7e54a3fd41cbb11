package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

// LineTemplate is a priced, stock-aware cart line input produced from an item.
type LineTemplate struct {
	ItemID         string
	VariationID    string
	Name           string
	VariationLabel string
	Unit           string
	UnitPrice      decimal.Decimal
	UnitCost       decimal.Decimal
	ControlsStock  bool
	Available      decimal.Decimal
	Promotion      *pricing.PromotionSnapshot
	Components     pricing.Kit
	ImageRef       string
}

// Resolver turns catalog items into line templates as of today in the shop's
// time zone.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver builds a resolver. A nil location means UTC and a nil clock
// means time.Now.
func NewResolver(loc *time.Location, now func() time.Time) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Resolver{loc: loc, now: now}
}

// Today is the current instant in the shop's location.
func (r *Resolver) Today() time.Time {
	return r.now().In(r.loc)
}

// Resolve prices item for the chosen variation. It does not mutate item.
func (r *Resolver) Resolve(item Item, variationID string) (LineTemplate, error) {
	if err := Validate(item); err != nil {
		return LineTemplate{}, err
	}

	tpl := LineTemplate{
		ItemID:        item.ID,
		Name:          item.Name,
		Unit:          item.Unit,
		UnitPrice:     item.Price,
		UnitCost:      item.Cost,
		ControlsStock: controlsStock(item),
		Available:     item.Stock,
		Components:    item.Components.Clone(),
		ImageRef:      item.ImageRef,
	}
	if item.IsComposite() {
		tpl.UnitPrice = item.Components.Price()
		tpl.UnitCost = item.Components.Cost()
	}

	switch {
	case variationID != "":
		v, ok := item.Variation(variationID)
		if !ok {
			return LineTemplate{}, pkgerrors.New(pkgerrors.CodeInvalidCatalogReference, "unknown variation").
				WithDetails(map[string]any{"item_id": item.ID, "variation_id": variationID})
		}
		tpl.VariationID = v.ID
		tpl.VariationLabel = v.Label()
		tpl.Available = v.Stock
		if v.Price != nil && v.Price.IsPositive() {
			tpl.UnitPrice = *v.Price
		}
		if v.ImageRef != "" {
			tpl.ImageRef = v.ImageRef
		}
	case len(item.Variations) > 0:
		return LineTemplate{}, pkgerrors.New(pkgerrors.CodeInvalidCatalogReference, "a variation must be chosen").
			WithDetails(map[string]any{"item_id": item.ID})
	}

	today := r.Today()
	if item.Promotion.Applies(today) {
		tpl.UnitPrice = item.Promotion.Price
		tpl.Promotion = item.Promotion.Snapshot(today)
	}
	return tpl, nil
}

// controlsStock defaults to true. A kit without variations is assembled to
// order and never stock controlled; a kit with variations is controlled by
// the chosen variation's stock. An explicit false on the record always wins.
func controlsStock(item Item) bool {
	if item.ControlsStock != nil && !*item.ControlsStock {
		return false
	}
	if item.IsComposite() && len(item.Variations) == 0 {
		return false
	}
	return true
}
