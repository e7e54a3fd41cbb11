package documents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/angelmondragon/printshop-backend/pkg/money"
)

// Document is an immutable sale or quote. Only payments are appended after
// it is stored.
type Document struct {
	ID            uuid.UUID          `json:"id"`
	Type          enums.DocumentType `json:"type"`
	DisplayCode   string             `json:"display_code"`
	Name          string             `json:"name,omitempty"`
	Notes         string             `json:"notes,omitempty"`
	Customer      cart.Customer      `json:"customer"`
	Discount      pricing.Discount   `json:"discount"`
	Totals        pricing.Totals     `json:"totals"`
	Lines         []Line             `json:"lines"`
	Payments      []Payment          `json:"payments"`
	SaldoPendente decimal.Decimal    `json:"saldo_pendente"`
	ConvertedFrom *uuid.UUID         `json:"converted_from,omitempty"`
	Provenance    string             `json:"provenance,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Line is a cart line copied by value.
type Line struct {
	ID             uuid.UUID                  `json:"id"`
	Position       int                        `json:"position"`
	ItemID         string                     `json:"item_id"`
	VariationID    string                     `json:"variation_id,omitempty"`
	Name           string                     `json:"name"`
	VariationLabel string                     `json:"variation_label,omitempty"`
	Unit           string                     `json:"unit,omitempty"`
	Quantity       decimal.Decimal            `json:"quantity"`
	UnitPrice      decimal.Decimal            `json:"unit_price"`
	UnitCost       decimal.Decimal            `json:"unit_cost"`
	Total          decimal.Decimal            `json:"total"`
	ControlsStock  bool                       `json:"controls_stock"`
	Components     pricing.Kit                `json:"components,omitempty"`
	Promotion      *pricing.PromotionSnapshot `json:"promotion,omitempty"`
}

// Receipt is what the document store assigns on save.
type Receipt struct {
	ID          uuid.UUID
	DisplayCode string
}

// Paid sums the effective value of every payment.
func (d Document) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range d.Payments {
		total = total.Add(p.Effective)
	}
	return total
}

// Settled reports whether nothing is left to pay.
func (d Document) Settled() bool {
	return d.Type == enums.DocumentSale && !d.SaldoPendente.IsPositive()
}

// Demands is the stock the document takes. Quotes take none.
func (d Document) Demands() []stock.Demand {
	if d.Type != enums.DocumentSale {
		return nil
	}
	demands := make([]stock.Demand, 0, len(d.Lines))
	for _, l := range d.Lines {
		if l.ControlsStock {
			demands = append(demands, stock.Demand{
				Ref:      stock.Ref{ItemID: l.ItemID, VariationID: l.VariationID},
				Quantity: l.Quantity,
			})
		}
	}
	return stock.Aggregate(demands)
}

func (d *Document) recomputeBalance() {
	d.SaldoPendente = money.Round(pricing.Balance(d.Totals.Total, d.Paid()))
}

// fromCart copies snap by value so later catalog or cart edits never reach
// the document.
func fromCart(snap cart.Snapshot, docType enums.DocumentType, now time.Time) Document {
	doc := Document{
		ID:        snap.ID,
		Type:      docType,
		Name:      snap.Name,
		Notes:     snap.Notes,
		Customer:  snap.Customer,
		Discount:  snap.Discount,
		Totals:    snap.Recompute(),
		Lines:     make([]Line, 0, len(snap.Lines)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if snap.Customer.ID != nil {
		id := *snap.Customer.ID
		doc.Customer.ID = &id
	}
	for i, l := range snap.Lines {
		line := Line{
			ID:             l.ID,
			Position:       i,
			ItemID:         l.ItemID,
			VariationID:    l.VariationID,
			Name:           l.Name,
			VariationLabel: l.VariationLabel,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			UnitCost:       l.UnitCost,
			Total:          money.Round(l.Total()),
			ControlsStock:  l.ControlsStock,
			Components:     l.Components.Clone(),
		}
		if l.Promotion != nil {
			p := *l.Promotion
			line.Promotion = &p
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc
}

func (d Document) clone() Document {
	lines := make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		l.Components = l.Components.Clone()
		lines[i] = l
	}
	d.Lines = lines
	d.Payments = append([]Payment(nil), d.Payments...)
	return d
}

// CartSnapshot reopens the document as an editable cart. A sale already holds
// its own stock, so each line may use what it took plus what levels reports.
func (d Document) CartSnapshot(levels stock.Snapshot) cart.Snapshot {
	snap := cart.Snapshot{
		ID:        d.ID,
		Name:      d.Name,
		Notes:     d.Notes,
		Customer:  d.Customer,
		Discount:  d.Discount,
		Freight:   d.Totals.Freight,
		Lines:     make([]cart.Line, 0, len(d.Lines)),
		Source:    &cart.Source{ID: d.ID, Type: d.Type, DisplayCode: d.DisplayCode},
		CreatedAt: d.CreatedAt,
	}
	held := map[stock.Ref]decimal.Decimal{}
	for _, dem := range d.Demands() {
		held[dem.Ref] = dem.Quantity
	}
	for _, l := range d.Lines {
		ref := stock.Ref{ItemID: l.ItemID, VariationID: l.VariationID}
		line := cart.Line{
			ID:             l.ID,
			ItemID:         l.ItemID,
			VariationID:    l.VariationID,
			Name:           l.Name,
			VariationLabel: l.VariationLabel,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			UnitCost:       l.UnitCost,
			ControlsStock:  l.ControlsStock,
			Available:      levels[ref].Add(held[ref]),
			Composite:      len(l.Components) > 0,
			Components:     l.Components.Clone(),
		}
		if l.Promotion != nil {
			p := *l.Promotion
			line.Promotion = &p
		}
		snap.Lines = append(snap.Lines, line)
	}
	return snap
}
