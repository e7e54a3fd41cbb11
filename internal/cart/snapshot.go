package cart

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// Customer is either a registered customer (ID set) or free text.
type Customer struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name,omitempty"`
}

// IsZero reports whether no customer is set.
func (c Customer) IsZero() bool {
	return (c.ID == nil || *c.ID == "") && strings.TrimSpace(c.Name) == ""
}

// Source identifies an already persisted document the cart is editing.
type Source struct {
	ID          uuid.UUID          `json:"id"`
	Type        enums.DocumentType `json:"type"`
	DisplayCode string             `json:"display_code,omitempty"`
}

// Snapshot is a complete, self-contained copy of the cart state.
type Snapshot struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Customer  Customer         `json:"customer"`
	Lines     []Line           `json:"lines"`
	Discount  pricing.Discount `json:"discount"`
	Freight   decimal.Decimal  `json:"freight"`
	Source    *Source          `json:"source,omitempty"`
	Finalized bool             `json:"finalized,omitempty"`
	Totals    pricing.Totals   `json:"totals"`
	CreatedAt time.Time        `json:"created_at"`
}

// DefaultSnapshot is the state of a freshly opened cart.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		ID:        uuid.New(),
		Lines:     []Line{},
		Discount:  pricing.NoDiscount(),
		Freight:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
}

// HasContent reports whether the cart holds anything worth persisting.
func (s Snapshot) HasContent() bool {
	return len(s.Lines) > 0 ||
		!s.Customer.IsZero() ||
		strings.TrimSpace(s.Name) != "" ||
		strings.TrimSpace(s.Notes) != ""
}

// State derives the lifecycle state from the contents.
func (s Snapshot) State() enums.CartState {
	switch {
	case s.Finalized:
		return enums.CartStateFinalized
	case len(s.Lines) > 0:
		return enums.CartStateReady
	case s.HasContent():
		return enums.CartStateBuilding
	default:
		return enums.CartStateEmpty
	}
}

// Demands sums quantities per stock row over the stock-controlled lines.
func (s Snapshot) Demands() []stock.Demand {
	demands := make([]stock.Demand, 0, len(s.Lines))
	for _, l := range s.Lines {
		if !l.ControlsStock {
			continue
		}
		demands = append(demands, stock.Demand{Ref: l.Ref(), Quantity: l.Quantity})
	}
	return stock.Aggregate(demands)
}

// Recompute derives totals from the snapshot contents.
func (s Snapshot) Recompute() pricing.Totals {
	items := make([]pricing.Item, 0, len(s.Lines))
	for _, l := range s.Lines {
		items = append(items, l.pricingItem())
	}
	return pricing.Compute(items, s.Discount, s.Freight)
}

func (s Snapshot) clone() Snapshot {
	lines := make([]Line, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = l.clone()
	}
	s.Lines = lines
	if s.Customer.ID != nil {
		id := *s.Customer.ID
		s.Customer.ID = &id
	}
	if s.Source != nil {
		src := *s.Source
		s.Source = &src
	}
	return s
}
