package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int, loc *time.Location) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return &t
}

func TestComputePercentDiscount(t *testing.T) {
	t.Parallel()

	totals := Compute(
		[]Item{{Quantity: dec("2"), UnitPrice: dec("25.90"), UnitCost: dec("10")}},
		Discount{Type: enums.DiscountPercent, Value: dec("10")},
		decimal.Zero,
	)
	if !totals.Subtotal.Equal(dec("51.80")) {
		t.Fatalf("expected subtotal 51.80, got %s", totals.Subtotal)
	}
	if !totals.DiscountApplied.Equal(dec("5.18")) {
		t.Fatalf("expected discount 5.18, got %s", totals.DiscountApplied)
	}
	if !totals.Total.Equal(dec("46.62")) {
		t.Fatalf("expected total 46.62, got %s", totals.Total)
	}
	if !totals.Cost.Equal(dec("20")) {
		t.Fatalf("expected cost 20, got %s", totals.Cost)
	}
}

func TestComputeClampsFixedDiscountAndFreight(t *testing.T) {
	t.Parallel()

	totals := Compute(
		[]Item{{Quantity: dec("1"), UnitPrice: dec("30")}},
		Discount{Type: enums.DiscountFixed, Value: dec("50")},
		dec("-5"),
	)
	if !totals.DiscountApplied.Equal(dec("30")) {
		t.Fatalf("expected discount clamped to 30, got %s", totals.DiscountApplied)
	}
	if !totals.Freight.IsZero() || !totals.Total.IsZero() {
		t.Fatalf("expected zero freight and total, got %s / %s", totals.Freight, totals.Total)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	t.Parallel()

	totals := Compute(
		[]Item{{Quantity: dec("3"), UnitPrice: dec("0.335")}},
		NoDiscount(),
		dec("0.005"),
	)
	if !totals.Subtotal.Equal(dec("1.01")) {
		t.Fatalf("expected subtotal 1.01, got %s", totals.Subtotal)
	}
	if !totals.Freight.Equal(dec("0.01")) {
		t.Fatalf("expected freight 0.01, got %s", totals.Freight)
	}
	if !totals.Total.Equal(dec("1.02")) {
		t.Fatalf("expected total 1.02, got %s", totals.Total)
	}
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()

	totals := Compute(nil, Discount{Type: enums.DiscountPercent, Value: dec("10")}, dec("12.5"))
	if !totals.Subtotal.IsZero() || !totals.DiscountApplied.IsZero() {
		t.Fatalf("expected zero subtotal and discount, got %+v", totals)
	}
	if !totals.Total.Equal(dec("12.5")) {
		t.Fatalf("expected freight-only total, got %s", totals.Total)
	}
}

func TestParseDiscount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind, raw string
		wantType  enums.DiscountType
		wantValue string
	}{
		{"percentual", "10", enums.DiscountPercent, "10"},
		{"valor", "R$ 5,50", enums.DiscountFixed, "5.5"},
		{"bogus", "7", enums.DiscountPercent, "7"},
		{"fixed", "-3", enums.DiscountFixed, "0"},
		{"percent", "abc", enums.DiscountPercent, "0"},
	}
	for _, tc := range cases {
		got := ParseDiscount(tc.kind, tc.raw)
		if got.Type != tc.wantType || !got.Value.Equal(dec(tc.wantValue)) {
			t.Fatalf("ParseDiscount(%q, %q) = %+v", tc.kind, tc.raw, got)
		}
	}
}

func TestPercentDiscountAbove100IsClamped(t *testing.T) {
	t.Parallel()

	d := Discount{Type: enums.DiscountPercent, Value: dec("150")}
	if got := d.Apply(dec("40")); !got.Equal(dec("40")) {
		t.Fatalf("expected clamp to subtotal, got %s", got)
	}
}

func TestKitRollup(t *testing.T) {
	t.Parallel()

	var kit Kit
	kit = kit.Add(Component{ItemID: "A", Quantity: dec("2"), UnitPrice: dec("10"), UnitCost: dec("4")})
	kit = kit.Add(Component{ItemID: "B", Quantity: dec("1"), UnitPrice: dec("5"), UnitCost: dec("2")})
	if !kit.Price().Equal(dec("25")) {
		t.Fatalf("expected kit price 25, got %s", kit.Price())
	}
	if !kit.Cost().Equal(dec("10")) {
		t.Fatalf("expected kit cost 10, got %s", kit.Cost())
	}

	kit, ok := kit.Remove("B")
	if !ok {
		t.Fatal("expected B to be removed")
	}
	if !kit.Price().Equal(dec("20")) {
		t.Fatalf("expected kit price 20 after removal, got %s", kit.Price())
	}
}

func TestKitAddMergesSameItem(t *testing.T) {
	t.Parallel()

	kit := Kit{{ItemID: "A", Quantity: dec("1"), UnitPrice: dec("3")}}
	merged := kit.Add(Component{ItemID: "A", Quantity: dec("2"), UnitPrice: dec("3")})
	if len(merged) != 1 || !merged[0].Quantity.Equal(dec("3")) {
		t.Fatalf("expected merged quantity 3, got %+v", merged)
	}
	if !kit[0].Quantity.Equal(dec("1")) {
		t.Fatal("Add must not mutate the receiver")
	}
}

func TestKitResize(t *testing.T) {
	t.Parallel()

	kit := Kit{{ItemID: "A", Quantity: dec("1"), UnitPrice: dec("3")}}
	resized, ok := kit.Resize("A", dec("4"))
	if !ok || !resized.Price().Equal(dec("12")) {
		t.Fatalf("expected resized price 12, got %s", resized.Price())
	}
	if _, ok := kit.Resize("missing", dec("1")); ok {
		t.Fatal("resizing an unknown component should report false")
	}
	emptied, ok := kit.Resize("A", decimal.Zero)
	if !ok || len(emptied) != 0 {
		t.Fatalf("zero quantity should remove the component, got %+v", emptied)
	}
}

func TestPromotionWindowInclusive(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	promo := &Promotion{
		Active: true,
		Start:  day(2026, time.March, 1, time.UTC),
		End:    day(2026, time.March, 31, time.UTC),
		Price:  dec("9.90"),
	}

	cases := []struct {
		name  string
		today time.Time
		want  bool
	}{
		{"first day", time.Date(2026, time.March, 1, 0, 5, 0, 0, loc), true},
		{"last day late evening", time.Date(2026, time.March, 31, 23, 30, 0, 0, loc), true},
		{"day before", time.Date(2026, time.February, 28, 23, 59, 0, 0, loc), false},
		{"day after", time.Date(2026, time.April, 1, 0, 0, 0, 0, loc), false},
	}
	for _, tc := range cases {
		if got := promo.IsActive(tc.today); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPromotionOpenEndedAndInactive(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)
	open := &Promotion{Active: true, Price: dec("1")}
	if !open.Applies(today) {
		t.Fatal("promotion without dates should apply")
	}
	inactive := &Promotion{Active: false, Price: dec("1")}
	if inactive.IsActive(today) {
		t.Fatal("inactive promotion must not apply")
	}
	zero := &Promotion{Active: true}
	if zero.Applies(today) {
		t.Fatal("promotion without price must not apply")
	}
	var missing *Promotion
	if missing.IsActive(today) || missing.Snapshot(today) != nil {
		t.Fatal("nil promotion must be inert")
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()

	if got := Balance(dec("100"), dec("40")); !got.Equal(dec("60")) {
		t.Fatalf("expected 60, got %s", got)
	}
	if got := Balance(dec("100"), dec("140")); !got.IsZero() {
		t.Fatalf("expected overpayment to clamp to 0, got %s", got)
	}
}
