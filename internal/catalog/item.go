package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/pricing"
)

// Item is a catalog entry as seen by the cart. It is read-only input owned by
// the catalog collaborator.
type Item struct {
	ID            string             `json:"id" validate:"required"`
	Name          string             `json:"name"`
	Unit          string             `json:"unit"`
	Price         decimal.Decimal    `json:"price"`
	Cost          decimal.Decimal    `json:"cost"`
	Stock         decimal.Decimal    `json:"stock"`
	ControlsStock *bool              `json:"controls_stock,omitempty"`
	Promotion     *pricing.Promotion `json:"promotion,omitempty"`
	Variations    []Variation        `json:"variations,omitempty" validate:"dive"`
	Components    pricing.Kit        `json:"components,omitempty" validate:"dive"`
	ImageRef      string             `json:"image_ref,omitempty"`
}

// IsComposite reports whether the item is a kit priced from its components.
func (i Item) IsComposite() bool {
	return len(i.Components) > 0
}

// Variation looks up a variation by id.
func (i Item) Variation(id string) (Variation, bool) {
	for _, v := range i.Variations {
		if v.ID == id {
			return v, true
		}
	}
	return Variation{}, false
}

// Variation is a color/size style option of an item with its own stock.
type Variation struct {
	ID         string            `json:"id" validate:"required"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Stock      decimal.Decimal   `json:"stock"`
	Price      *decimal.Decimal  `json:"price,omitempty"`
	ImageRef   string            `json:"image_ref,omitempty"`
}

// Label joins the attribute values in attribute-name order, e.g. "Azul / M".
func (v Variation) Label() string {
	if len(v.Attributes) == 0 {
		return v.ID
	}
	keys := make([]string, 0, len(v.Attributes))
	for k := range v.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]string, 0, len(keys))
	for _, k := range keys {
		if val := strings.TrimSpace(v.Attributes[k]); val != "" {
			values = append(values, val)
		}
	}
	if len(values) == 0 {
		return v.ID
	}
	return strings.Join(values, " / ")
}
