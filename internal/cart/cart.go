package cart

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/catalog"
	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/money"
)

// ChangeKind tells listeners what part of the cart changed.
type ChangeKind string

const (
	ChangeLines     ChangeKind = "lines"
	ChangeCustomer  ChangeKind = "customer"
	ChangeDiscount  ChangeKind = "discount"
	ChangeFreight   ChangeKind = "freight"
	ChangeNotes     ChangeKind = "notes"
	ChangeName      ChangeKind = "name"
	ChangeSource    ChangeKind = "source"
	ChangeRestored  ChangeKind = "restored"
	ChangeCleared   ChangeKind = "cleared"
	ChangeFinalized ChangeKind = "finalized"
)

// Change is delivered to listeners after every successful mutation.
type Change struct {
	Kind   ChangeKind
	CartID uuid.UUID
}

// Listener observes cart changes. It runs on the mutating goroutine after the
// cart lock is released and must not block.
type Listener func(Change)

// Cart is the mutable cart/quote being edited by one session. Every mutation
// recomputes totals before returning. Reads are safe from other goroutines.
type Cart struct {
	mu        sync.RWMutex
	resolver  *catalog.Resolver
	state     Snapshot
	listeners map[int]Listener
	nextID    int
}

// New returns an empty cart that prices lines with resolver.
func New(resolver *catalog.Resolver) *Cart {
	if resolver == nil {
		resolver = catalog.NewResolver(nil, nil)
	}
	c := &Cart{
		resolver:  resolver,
		state:     DefaultSnapshot(),
		listeners: map[int]Listener{},
	}
	c.state.Totals = c.state.Recompute()
	return c
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cart) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// ID is the identity the cart will be finalized under.
func (c *Cart) ID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.ID
}

// Snapshot returns a deep copy of the current state.
func (c *Cart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Totals returns the derived totals.
func (c *Cart) Totals() pricing.Totals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Totals
}

// State returns the lifecycle state.
func (c *Cart) State() enums.CartState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.State()
}

// Source returns the persisted document being edited, if any.
func (c *Cart) Source() *Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.Source == nil {
		return nil
	}
	src := *c.state.Source
	return &src
}

// Lines returns a copy of the lines in order.
func (c *Cart) Lines() []Line {
	return c.Snapshot().Lines
}

// AddLine resolves item, validates stock and either merges the quantity into
// the line with the same item and variation or appends a new line.
func (c *Cart) AddLine(item catalog.Item, quantity string, variationID string) (Line, error) {
	qty := money.Quantity(quantity)
	if !qty.IsPositive() {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"quantity": quantity})
	}
	tpl, err := c.resolver.Resolve(item, variationID)
	if err != nil {
		return Line{}, err
	}

	var added Line
	err = c.mutate(ChangeLines, func(s *Snapshot) error {
		if idx := s.findRef(tpl.ItemID, tpl.VariationID); idx >= 0 {
			line := &s.Lines[idx]
			if err := stock.Check(stock.Candidate{
				Ref:           line.Ref(),
				ControlsStock: tpl.ControlsStock,
				CurrentQty:    line.Quantity,
				Delta:         qty,
				Available:     tpl.Available,
			}); err != nil {
				return err
			}
			line.Quantity = line.Quantity.Add(qty)
			line.Available = tpl.Available
			line.ControlsStock = tpl.ControlsStock
			added = line.clone()
			return nil
		}
		if err := stock.Check(stock.Candidate{
			Ref:           stock.Ref{ItemID: tpl.ItemID, VariationID: tpl.VariationID},
			ControlsStock: tpl.ControlsStock,
			Delta:         qty,
			Available:     tpl.Available,
		}); err != nil {
			return err
		}
		line := newLine(tpl, qty)
		s.Lines = append(s.Lines, line)
		added = line.clone()
		return nil
	})
	return added, err
}

// UpdateLine edits one field of a line from raw user input. Quantity
// increases are validated against the stock seen when the line was priced.
// Kit lines reject price and cost edits while they have components.
func (c *Cart) UpdateLine(lineID uuid.UUID, field LineField, value string) error {
	return c.mutate(ChangeLines, func(s *Snapshot) error {
		line, err := s.line(lineID)
		if err != nil {
			return err
		}
		switch field {
		case FieldQuantity:
			qty := money.Quantity(value)
			if delta := qty.Sub(line.Quantity); delta.IsPositive() {
				if err := stock.Check(stock.Candidate{
					Ref:           line.Ref(),
					ControlsStock: line.ControlsStock,
					CurrentQty:    line.Quantity,
					Delta:         delta,
					Available:     line.Available,
				}); err != nil {
					return err
				}
			}
			line.Quantity = qty
		case FieldUnitPrice, FieldUnitCost:
			if line.PriceLocked() {
				return pkgerrors.Wrap(pkgerrors.CodeValidation, pricing.ErrKitPriceLocked, "kit price cannot be edited").
					WithDetails(map[string]any{"line_id": lineID.String(), "field": string(field)})
			}
			if field == FieldUnitPrice {
				line.UnitPrice = money.Amount(value)
				line.Promotion = nil
			} else {
				line.UnitCost = money.Amount(value)
			}
		default:
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown line field").
				WithDetails(map[string]any{"field": string(field)})
		}
		return nil
	})
}

// ChangeVariation re-prices a line for another variation of the same item.
// If another line already holds that variation the two are merged.
func (c *Cart) ChangeVariation(lineID uuid.UUID, item catalog.Item, variationID string) error {
	tpl, err := c.resolver.Resolve(item, variationID)
	if err != nil {
		return err
	}
	return c.mutate(ChangeLines, func(s *Snapshot) error {
		line, err := s.line(lineID)
		if err != nil {
			return err
		}
		if line.ItemID != tpl.ItemID {
			return pkgerrors.New(pkgerrors.CodeValidation, "variation belongs to another item")
		}
		current := decimal.Zero
		other := s.findRef(tpl.ItemID, tpl.VariationID)
		if other >= 0 && s.Lines[other].ID != lineID {
			current = s.Lines[other].Quantity
		}
		if err := stock.Check(stock.Candidate{
			Ref:           stock.Ref{ItemID: tpl.ItemID, VariationID: tpl.VariationID},
			ControlsStock: tpl.ControlsStock,
			CurrentQty:    current,
			Delta:         line.Quantity,
			Available:     tpl.Available,
		}); err != nil {
			return err
		}
		if other >= 0 && s.Lines[other].ID != lineID {
			s.Lines[other].Quantity = current.Add(line.Quantity)
			s.Lines[other].Available = tpl.Available
			s.removeLine(lineID)
			return nil
		}
		qty := line.Quantity
		*line = newLine(tpl, qty)
		line.ID = lineID
		return nil
	})
}

// RemoveLine deletes a line.
func (c *Cart) RemoveLine(lineID uuid.UUID) error {
	return c.mutate(ChangeLines, func(s *Snapshot) error {
		if !s.removeLine(lineID) {
			return lineNotFound(lineID)
		}
		return nil
	})
}

// AddComponent captures item's current price and cost into a kit line.
func (c *Cart) AddComponent(lineID uuid.UUID, item catalog.Item, quantity string) error {
	qty := money.Quantity(quantity)
	if !qty.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "component quantity must be greater than zero")
	}
	tpl, err := c.resolver.Resolve(item, "")
	if err != nil {
		return err
	}
	return c.mutateKit(lineID, func(kit pricing.Kit) (pricing.Kit, bool) {
		return kit.Add(pricing.Component{
			ItemID:    tpl.ItemID,
			Name:      tpl.Name,
			Quantity:  qty,
			UnitPrice: tpl.UnitPrice,
			UnitCost:  tpl.UnitCost,
		}), true
	})
}

// RemoveComponent drops a component from a kit line.
func (c *Cart) RemoveComponent(lineID uuid.UUID, itemID string) error {
	return c.mutateKit(lineID, func(kit pricing.Kit) (pricing.Kit, bool) {
		return kit.Remove(itemID)
	})
}

// ResizeComponent sets a component quantity. Zero removes it.
func (c *Cart) ResizeComponent(lineID uuid.UUID, itemID string, quantity string) error {
	qty := money.Quantity(quantity)
	return c.mutateKit(lineID, func(kit pricing.Kit) (pricing.Kit, bool) {
		return kit.Resize(itemID, qty)
	})
}

func (c *Cart) mutateKit(lineID uuid.UUID, fn func(pricing.Kit) (pricing.Kit, bool)) error {
	return c.mutate(ChangeLines, func(s *Snapshot) error {
		line, err := s.line(lineID)
		if err != nil {
			return err
		}
		if !line.Composite {
			return pkgerrors.New(pkgerrors.CodeValidation, "line is not a kit").
				WithDetails(map[string]any{"line_id": lineID.String()})
		}
		kit, ok := fn(line.Components)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "kit component not found").
				WithDetails(map[string]any{"line_id": lineID.String()})
		}
		line.applyKit(kit)
		return nil
	})
}

// SetDiscount replaces the cart discount. Invalid values are coerced to zero.
func (c *Cart) SetDiscount(d pricing.Discount) error {
	return c.mutate(ChangeDiscount, func(s *Snapshot) error {
		s.Discount = d.Normalize()
		return nil
	})
}

// SetFreight parses raw freight input. Negative or non-numeric input is zero.
func (c *Cart) SetFreight(raw string) error {
	return c.mutate(ChangeFreight, func(s *Snapshot) error {
		s.Freight = money.Amount(raw)
		return nil
	})
}

// SetCustomer links a registered customer.
func (c *Cart) SetCustomer(id, name string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	return c.mutate(ChangeCustomer, func(s *Snapshot) error {
		s.Customer = Customer{ID: &id, Name: strings.TrimSpace(name)}
		return nil
	})
}

// SetCustomerName sets a free-text customer, dropping any registered link.
func (c *Cart) SetCustomerName(name string) error {
	return c.mutate(ChangeCustomer, func(s *Snapshot) error {
		s.Customer = Customer{Name: strings.TrimSpace(name)}
		return nil
	})
}

// SetNotes replaces the free-text notes.
func (c *Cart) SetNotes(notes string) error {
	return c.mutate(ChangeNotes, func(s *Snapshot) error {
		s.Notes = notes
		return nil
	})
}

// SetName replaces the cart name.
func (c *Cart) SetName(name string) error {
	return c.mutate(ChangeName, func(s *Snapshot) error {
		s.Name = strings.TrimSpace(name)
		return nil
	})
}

// SetSource marks the cart as an edit of a persisted document. The cart
// adopts the document id so finalizing updates it in place.
func (c *Cart) SetSource(src Source) error {
	if src.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source id is required")
	}
	if !src.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "source type is invalid")
	}
	return c.mutate(ChangeSource, func(s *Snapshot) error {
		s.ID = src.ID
		s.Source = &src
		return nil
	})
}

// Clear resets the cart to a fresh default state with a new identity.
func (c *Cart) Clear() error {
	return c.mutate(ChangeCleared, func(s *Snapshot) error {
		*s = DefaultSnapshot()
		return nil
	})
}

// MarkFinalized moves the cart to its terminal state.
func (c *Cart) MarkFinalized() error {
	return c.mutate(ChangeFinalized, func(s *Snapshot) error {
		if len(s.Lines) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot finalize an empty cart")
		}
		s.Finalized = true
		return nil
	})
}

// Restore merges snap over a fresh default state and recomputes totals.
// Stored totals are ignored.
func (c *Cart) Restore(snap Snapshot) error {
	if snap.Finalized {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "finalized carts cannot be restored")
	}
	return c.mutate(ChangeRestored, func(s *Snapshot) error {
		*s = merge(DefaultSnapshot(), snap.clone())
		return nil
	})
}

// Reopen replaces a finalized cart with a fresh one so the session can go on.
func (c *Cart) Reopen() {
	c.mu.Lock()
	c.state = DefaultSnapshot()
	c.state.Totals = c.state.Recompute()
	c.mu.Unlock()
	c.notify(ChangeCleared)
}

func merge(base, draft Snapshot) Snapshot {
	if draft.ID != uuid.Nil {
		base.ID = draft.ID
	}
	if !draft.CreatedAt.IsZero() {
		base.CreatedAt = draft.CreatedAt
	}
	base.Name = draft.Name
	base.Notes = draft.Notes
	base.Customer = draft.Customer
	base.Source = draft.Source
	if draft.Discount.Type != "" {
		base.Discount = draft.Discount.Normalize()
	}
	base.Freight = money.NonNegative(draft.Freight)
	for _, l := range draft.Lines {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.Quantity = money.NonNegative(l.Quantity)
		if l.PriceLocked() {
			l.applyKit(l.Components)
		}
		base.Lines = append(base.Lines, l)
	}
	return base
}

func (c *Cart) mutate(kind ChangeKind, fn func(*Snapshot) error) error {
	c.mu.Lock()
	if c.state.Finalized {
		c.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is finalized")
	}
	next := c.state.clone()
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}
	next.Totals = next.Recompute()
	c.state = next
	c.mu.Unlock()

	c.notify(kind)
	return nil
}

func (c *Cart) notify(kind ChangeKind) {
	c.mu.RLock()
	change := Change{Kind: kind, CartID: c.state.ID}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(change)
	}
}

func (s *Snapshot) findRef(itemID, variationID string) int {
	for i, l := range s.Lines {
		if l.ItemID == itemID && l.VariationID == variationID {
			return i
		}
	}
	return -1
}

func (s *Snapshot) line(id uuid.UUID) (*Line, error) {
	for i := range s.Lines {
		if s.Lines[i].ID == id {
			return &s.Lines[i], nil
		}
	}
	return nil, lineNotFound(id)
}

func (s *Snapshot) removeLine(id uuid.UUID) bool {
	for i, l := range s.Lines {
		if l.ID == id {
			s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
			return true
		}
	}
	return false
}

func lineNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"line_id": id.String()})
}
