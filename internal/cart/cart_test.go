package cart

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/catalog"
	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestCart() *Cart {
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, time.UTC)
	return New(catalog.NewResolver(time.UTC, func() time.Time { return now }))
}

func mug() catalog.Item {
	return catalog.Item{ID: "mug", Name: "Caneca", Unit: "UN", Price: dec("25.90"), Cost: dec("10"), Stock: dec("4")}
}

func kitItem() catalog.Item {
	return catalog.Item{
		ID:   "kit",
		Name: "Kit",
		Components: pricing.Kit{
			{ItemID: "A", Name: "A", Quantity: dec("2"), UnitPrice: dec("10"), UnitCost: dec("4")},
			{ItemID: "B", Name: "B", Quantity: dec("1"), UnitPrice: dec("5"), UnitCost: dec("2")},
		},
	}
}

func TestEmptyCartState(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	if c.State() != enums.CartStateEmpty {
		t.Fatalf("expected empty, got %s", c.State())
	}
	if err := c.SetName("Pedido balcão"); err != nil {
		t.Fatalf("set name: %v", err)
	}
	if c.State() != enums.CartStateBuilding {
		t.Fatalf("expected building, got %s", c.State())
	}
	if _, err := c.AddLine(mug(), "1", ""); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if c.State() != enums.CartStateReady {
		t.Fatalf("expected ready_to_finalize, got %s", c.State())
	}
}

func TestAddLineScenarioTotals(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	if _, err := c.AddLine(mug(), "2", ""); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.SetDiscount(pricing.ParseDiscount("percent", "10")); err != nil {
		t.Fatalf("set discount: %v", err)
	}
	totals := c.Totals()
	if !totals.Subtotal.Equal(dec("51.80")) || !totals.DiscountApplied.Equal(dec("5.18")) || !totals.Total.Equal(dec("46.62")) {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestAddLineMergesAndValidatesStock(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	first, err := c.AddLine(mug(), "2", "")
	if err != nil {
		t.Fatalf("add line: %v", err)
	}

	_, err = c.AddLine(mug(), "3", "")
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock for 2+3 > 4, got %v", err)
	}
	shortages := stock.Shortages(err)
	if len(shortages) != 1 || !shortages[0].Requested.Equal(dec("5")) || !shortages[0].Available.Equal(dec("4")) {
		t.Fatalf("unexpected shortages %+v", shortages)
	}
	if lines := c.Lines(); len(lines) != 1 || !lines[0].Quantity.Equal(dec("2")) {
		t.Fatalf("rejected add must leave state intact, got %+v", lines)
	}

	merged, err := c.AddLine(mug(), "1", "")
	if err != nil {
		t.Fatalf("expected 2+1 <= 4 to pass, got %v", err)
	}
	if merged.ID != first.ID || !merged.Quantity.Equal(dec("3")) {
		t.Fatalf("expected merge into first line, got %+v", merged)
	}
	if len(c.Lines()) != 1 {
		t.Fatalf("expected a single merged line")
	}
}

func TestAddLineRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	if _, err := c.AddLine(mug(), "abc", ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := c.AddLine(catalog.Item{Name: "no id"}, "1", ""); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
		t.Fatalf("expected invalid catalog reference, got %v", err)
	}
	if c.State() != enums.CartStateEmpty {
		t.Fatalf("rejections must not enter cart state")
	}
}

func TestUpdateLineQuantityAndPrice(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	line, err := c.AddLine(mug(), "1", "")
	if err != nil {
		t.Fatalf("add line: %v", err)
	}

	if err := c.UpdateLine(line.ID, FieldQuantity, "4,0"); err != nil {
		t.Fatalf("update to available: %v", err)
	}
	if err := c.UpdateLine(line.ID, FieldQuantity, "5"); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if err := c.UpdateLine(line.ID, FieldUnitPrice, "R$ 20,00"); err != nil {
		t.Fatalf("update price: %v", err)
	}
	if got := c.Totals().Subtotal; !got.Equal(dec("80")) {
		t.Fatalf("expected subtotal 80, got %s", got)
	}
	if err := c.UpdateLine(line.ID, FieldQuantity, "oops"); err != nil {
		t.Fatalf("non-numeric quantity must not fail, got %v", err)
	}
	if got := c.Totals().Subtotal; !got.IsZero() {
		t.Fatalf("non-numeric quantity counts as zero, got %s", got)
	}
	if err := c.UpdateLine(line.ID, "color", "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown field, got %v", err)
	}
	if err := c.UpdateLine(uuid.New(), FieldQuantity, "1"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKitLineRollup(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	line, err := c.AddLine(kitItem(), "1", "")
	if err != nil {
		t.Fatalf("add kit: %v", err)
	}
	if line.ControlsStock {
		t.Fatal("kit without variations must not control stock")
	}
	if !line.UnitPrice.Equal(dec("25")) {
		t.Fatalf("expected kit price 25, got %s", line.UnitPrice)
	}

	err = c.UpdateLine(line.ID, FieldUnitPrice, "99")
	if !errors.Is(err, pricing.ErrKitPriceLocked) {
		t.Fatalf("expected kit price lock, got %v", err)
	}

	if err := c.RemoveComponent(line.ID, "B"); err != nil {
		t.Fatalf("remove component: %v", err)
	}
	if got := c.Totals().Subtotal; !got.Equal(dec("20")) {
		t.Fatalf("expected 20 after removing B, got %s", got)
	}

	extra := catalog.Item{ID: "C", Name: "C", Price: dec("3"), Cost: dec("1")}
	if err := c.AddComponent(line.ID, extra, "2"); err != nil {
		t.Fatalf("add component: %v", err)
	}
	if err := c.ResizeComponent(line.ID, "A", "1"); err != nil {
		t.Fatalf("resize component: %v", err)
	}
	lines := c.Lines()
	if !lines[0].UnitPrice.Equal(dec("16")) || !lines[0].UnitCost.Equal(dec("6")) {
		t.Fatalf("expected 10+6=16 price and 4+2=6 cost, got %s / %s", lines[0].UnitPrice, lines[0].UnitCost)
	}
	if err := c.RemoveComponent(line.ID, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	plain, err := c.AddLine(mug(), "1", "")
	if err != nil {
		t.Fatalf("add plain: %v", err)
	}
	if err := c.AddComponent(plain.ID, extra, "1"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected non-kit rejection, got %v", err)
	}
}

func TestKitRollupIsOrderIndependent(t *testing.T) {
	t.Parallel()

	a := catalog.Item{ID: "A", Price: dec("10"), Cost: dec("4")}
	b := catalog.Item{ID: "B", Price: dec("5"), Cost: dec("2")}
	base := catalog.Item{ID: "kit", Components: pricing.Kit{{ItemID: "Z", Quantity: dec("1"), UnitPrice: dec("1")}}}

	build := func(order []catalog.Item) decimal.Decimal {
		c := newTestCart()
		line, err := c.AddLine(base, "1", "")
		if err != nil {
			t.Fatalf("add kit: %v", err)
		}
		for _, it := range order {
			if err := c.AddComponent(line.ID, it, "2"); err != nil {
				t.Fatalf("add component: %v", err)
			}
		}
		if err := c.RemoveComponent(line.ID, "Z"); err != nil {
			t.Fatalf("remove component: %v", err)
		}
		return c.Lines()[0].UnitPrice
	}
	if ab, ba := build([]catalog.Item{a, b}), build([]catalog.Item{b, a}); !ab.Equal(ba) || !ab.Equal(dec("30")) {
		t.Fatalf("expected 30 regardless of order, got %s and %s", ab, ba)
	}
}

func TestChangeVariation(t *testing.T) {
	t.Parallel()

	override := dec("30")
	shirt := catalog.Item{
		ID:    "shirt",
		Price: dec("25"),
		Variations: []catalog.Variation{
			{ID: "p", Attributes: map[string]string{"size": "P"}, Stock: dec("5")},
			{ID: "g", Attributes: map[string]string{"size": "G"}, Stock: dec("1"), Price: &override},
		},
	}
	c := newTestCart()
	line, err := c.AddLine(shirt, "2", "p")
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.ChangeVariation(line.ID, shirt, "g"); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock for 2 > 1, got %v", err)
	}
	if err := c.UpdateLine(line.ID, FieldQuantity, "1"); err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if err := c.ChangeVariation(line.ID, shirt, "g"); err != nil {
		t.Fatalf("change variation: %v", err)
	}
	lines := c.Lines()
	if lines[0].ID != line.ID || lines[0].VariationLabel != "G" || !lines[0].UnitPrice.Equal(dec("30")) {
		t.Fatalf("unexpected line after change %+v", lines[0])
	}

	if _, err := c.AddLine(shirt, "1", "p"); err != nil {
		t.Fatalf("add p: %v", err)
	}
	if err := c.ChangeVariation(line.ID, shirt, "p"); err != nil {
		t.Fatalf("merge variation: %v", err)
	}
	lines = c.Lines()
	if len(lines) != 1 || lines[0].VariationID != "p" || !lines[0].Quantity.Equal(dec("2")) {
		t.Fatalf("expected merged p line with qty 2, got %+v", lines)
	}
}

func TestSubtotalInvariantAcrossOperations(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	other := catalog.Item{ID: "pen", Price: dec("3.33"), Stock: dec("100")}
	a, _ := c.AddLine(mug(), "1", "")
	b, _ := c.AddLine(other, "7", "")
	_ = c.UpdateLine(a.ID, FieldQuantity, "3")
	_ = c.UpdateLine(b.ID, FieldUnitPrice, "1,115")
	_ = c.RemoveLine(a.ID)
	_, _ = c.AddLine(mug(), "2", "")

	snap := c.Snapshot()
	want := decimal.Zero
	for _, l := range snap.Lines {
		want = want.Add(l.UnitPrice.Mul(l.Quantity))
	}
	if !snap.Totals.Subtotal.Equal(want.Round(2)) {
		t.Fatalf("subtotal %s != Σ price×qty %s", snap.Totals.Subtotal, want.Round(2))
	}
}

func TestFreightAndCustomer(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	if err := c.SetFreight("-10"); err != nil {
		t.Fatalf("set freight: %v", err)
	}
	if !c.Totals().Freight.IsZero() {
		t.Fatal("negative freight must be coerced to zero")
	}
	if err := c.SetFreight("12,50"); err != nil {
		t.Fatalf("set freight: %v", err)
	}
	if !c.Totals().Total.Equal(dec("12.5")) {
		t.Fatalf("expected freight-only total, got %s", c.Totals().Total)
	}
	if err := c.SetCustomer("", "x"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := c.SetCustomer("cust-1", "Maria"); err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if err := c.SetCustomerName("Balcão"); err != nil {
		t.Fatalf("set customer name: %v", err)
	}
	snap := c.Snapshot()
	if snap.Customer.ID != nil || snap.Customer.Name != "Balcão" {
		t.Fatalf("free text customer must drop the registered id, got %+v", snap.Customer)
	}
}

func TestListenersAndFinalizedIsTerminal(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	var kinds []ChangeKind
	unsubscribe := c.Subscribe(func(ch Change) { kinds = append(kinds, ch.Kind) })

	if err := c.MarkFinalized(); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected empty cart finalize rejection, got %v", err)
	}
	_ = c.SetNotes("entregar sexta")
	_, _ = c.AddLine(mug(), "1", "")
	if err := c.MarkFinalized(); err != nil {
		t.Fatalf("mark finalized: %v", err)
	}
	if c.State() != enums.CartStateFinalized {
		t.Fatalf("expected finalized, got %s", c.State())
	}
	if _, err := c.AddLine(mug(), "1", ""); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("finalized cart must reject mutations, got %v", err)
	}
	if err := c.Clear(); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("finalized cart must reject clear, got %v", err)
	}

	want := []ChangeKind{ChangeNotes, ChangeLines, ChangeFinalized}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, kinds)
		}
	}

	unsubscribe()
	c.Reopen()
	if c.State() != enums.CartStateEmpty || len(kinds) != len(want) {
		t.Fatalf("reopen should reset the cart without notifying removed listeners")
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	_, _ = c.AddLine(mug(), "2", "")
	_, _ = c.AddLine(kitItem(), "1", "")
	_ = c.SetDiscount(pricing.Discount{Type: enums.DiscountFixed, Value: dec("7.5")})
	_ = c.SetFreight("9,90")
	_ = c.SetCustomerName("Maria")
	saved := c.Snapshot()

	payload, err := json.Marshal(saved)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored := newTestCart()
	if err := restored.Restore(decoded); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID() != saved.ID {
		t.Fatalf("expected restored id %s, got %s", saved.ID, restored.ID())
	}
	if !restored.Totals().Total.Equal(saved.Totals.Total) {
		t.Fatalf("expected total %s after restore, got %s", saved.Totals.Total, restored.Totals().Total)
	}
	if restored.State() != enums.CartStateReady {
		t.Fatalf("expected ready state, got %s", restored.State())
	}

	decoded.Finalized = true
	if err := newTestCart().Restore(decoded); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("finalized snapshot must not be restored, got %v", err)
	}
}

func TestRestoreFillsDefaults(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	err := c.Restore(Snapshot{
		Notes: "só observação",
		Lines: []Line{{ItemID: "x", Quantity: dec("-2"), UnitPrice: dec("5")}},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	snap := c.Snapshot()
	if snap.ID == uuid.Nil || snap.Lines[0].ID == uuid.Nil {
		t.Fatal("restore must assign missing identities")
	}
	if snap.Discount.Type != enums.DiscountPercent || !snap.Lines[0].Quantity.IsZero() {
		t.Fatalf("restore must coerce invalid values, got %+v", snap)
	}
}

func TestSetSourceAdoptsIdentity(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	id := uuid.New()
	if err := c.SetSource(Source{ID: id, Type: enums.DocumentQuote, DisplayCode: "O-000003"}); err != nil {
		t.Fatalf("set source: %v", err)
	}
	if c.ID() != id || c.Source() == nil || c.Source().DisplayCode != "O-000003" {
		t.Fatalf("expected cart to adopt source identity")
	}
	if err := c.SetSource(Source{Type: enums.DocumentSale}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	before := c.ID()
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if c.ID() == before || c.Source() != nil {
		t.Fatal("clear must start a fresh cart")
	}
}

func TestDemandsAggregateControlledLines(t *testing.T) {
	t.Parallel()

	c := newTestCart()
	_, _ = c.AddLine(mug(), "2", "")
	_, _ = c.AddLine(kitItem(), "5", "")
	demands := c.Snapshot().Demands()
	if len(demands) != 1 || demands[0].Ref.ItemID != "mug" || !demands[0].Quantity.Equal(dec("2")) {
		t.Fatalf("unexpected demands %+v", demands)
	}
}
