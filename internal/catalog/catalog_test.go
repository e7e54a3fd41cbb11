package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedResolver(t *testing.T, y int, m time.Month, d int) *Resolver {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(y, m, d, 15, 0, 0, 0, loc)
	return NewResolver(loc, func() time.Time { return now })
}

func TestNormalizeLegacyShape(t *testing.T) {
	t.Parallel()

	item, err := Normalize(map[string]any{
		"produto_id":        float64(42),
		"nome":              "Caneca personalizada",
		"unidade":           "UN",
		"preco_venda":       "25,90",
		"preco_custo":       "10.5",
		"estoque":           "7",
		"controla_estoque":  "sim",
		"promocao_ativa":    true,
		"preco_promocional": "19,90",
		"promocao_inicio":   "2026-03-01",
		"promocao_fim":      "2026-03-31",
		"variacoes": []any{
			map[string]any{"id": "v1", "cor": "Azul", "tamanho": "M", "estoque": 3, "preco": "27,00"},
			map[string]any{"variacao_id": "v2", "atributos": map[string]any{"cor": "Preta"}, "quantidade": "1"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ID != "42" || item.Name != "Caneca personalizada" || item.Unit != "UN" {
		t.Fatalf("unexpected identity: %+v", item)
	}
	if !item.Price.Equal(dec("25.90")) || !item.Cost.Equal(dec("10.5")) || !item.Stock.Equal(dec("7")) {
		t.Fatalf("unexpected numbers: %s %s %s", item.Price, item.Cost, item.Stock)
	}
	if item.ControlsStock == nil || !*item.ControlsStock {
		t.Fatal("expected explicit controls_stock=true")
	}
	if item.Promotion == nil || !item.Promotion.Active || !item.Promotion.Price.Equal(dec("19.90")) {
		t.Fatalf("unexpected promotion: %+v", item.Promotion)
	}
	if item.Promotion.Start == nil || item.Promotion.Start.Day() != 1 {
		t.Fatalf("unexpected promotion start: %v", item.Promotion.Start)
	}
	if len(item.Variations) != 2 {
		t.Fatalf("expected 2 variations, got %d", len(item.Variations))
	}
	if got := item.Variations[0].Label(); got != "Azul / M" {
		t.Fatalf("unexpected label %q", got)
	}
	if item.Variations[0].Price == nil || !item.Variations[0].Price.Equal(dec("27")) {
		t.Fatalf("expected variation price override, got %v", item.Variations[0].Price)
	}
	if item.Variations[1].ID != "v2" || item.Variations[1].Price != nil {
		t.Fatalf("unexpected second variation: %+v", item.Variations[1])
	}
}

func TestNormalizeNestedPromotionAndComponents(t *testing.T) {
	t.Parallel()

	item, err := NormalizeJSON([]byte(`{
		"id": "kit-1",
		"name": "Kit escritório",
		"promotion": {"active": true, "price": 15, "start": "2026-01-01T00:00:00-03:00"},
		"composicao": [
			{"produto_id": "A", "quantidade": 2, "preco_venda": 10, "preco_custo": 4},
			{"item_id": "B", "quantity": "1", "unit_price": "5", "unit_cost": "2"}
		]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !item.IsComposite() || !item.Components.Price().Equal(dec("25")) {
		t.Fatalf("expected kit rollup 25, got %s", item.Components.Price())
	}
	if item.Promotion == nil || item.Promotion.End != nil || !item.Promotion.Price.Equal(dec("15")) {
		t.Fatalf("unexpected promotion %+v", item.Promotion)
	}
}

func TestNormalizeRejectsMissingIdentity(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]any{
		"no id":           {"nome": "x"},
		"variation no id": {"id": "1", "variacoes": []any{map[string]any{"cor": "Azul"}}},
		"component no id": {"id": "1", "composicao": []any{map[string]any{"quantidade": 1}}},
		"bad date":        {"id": "1", "promocao": map[string]any{"ativa": true, "inicio": "amanhã"}},
	}
	for name, raw := range cases {
		_, err := Normalize(raw)
		if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
			t.Fatalf("%s: expected invalid catalog reference, got %v", name, err)
		}
	}
	if _, err := Normalize(nil); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
		t.Fatalf("nil record: unexpected error %v", err)
	}
}

func TestResolvePriceOrder(t *testing.T) {
	t.Parallel()

	override := dec("30")
	item := Item{
		ID:    "1",
		Name:  "Camiseta",
		Price: dec("25"),
		Cost:  dec("12"),
		Stock: dec("10"),
		Promotion: &pricing.Promotion{
			Active: true,
			Start:  ptr(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)),
			End:    ptr(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)),
			Price:  dec("19.90"),
		},
		Variations: []Variation{
			{ID: "p", Attributes: map[string]string{"size": "P"}, Stock: dec("2"), Price: &override},
			{ID: "m", Attributes: map[string]string{"size": "M"}, Stock: dec("4")},
		},
	}

	during := fixedResolver(t, 2026, time.March, 31)
	tpl, err := during.Resolve(item, "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tpl.UnitPrice.Equal(dec("19.90")) || tpl.Promotion == nil {
		t.Fatalf("expected promotion price, got %s", tpl.UnitPrice)
	}

	after := fixedResolver(t, 2026, time.April, 1)
	tpl, err = after.Resolve(item, "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tpl.UnitPrice.Equal(dec("30")) || tpl.Promotion != nil {
		t.Fatalf("expected variation override, got %s", tpl.UnitPrice)
	}
	if !tpl.Available.Equal(dec("2")) || tpl.VariationLabel != "P" {
		t.Fatalf("expected variation stock and label, got %+v", tpl)
	}

	tpl, err = after.Resolve(item, "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tpl.UnitPrice.Equal(dec("25")) || !tpl.UnitCost.Equal(dec("12")) {
		t.Fatalf("expected base price, got %s", tpl.UnitPrice)
	}
	if !tpl.ControlsStock {
		t.Fatal("plain items control stock by default")
	}
}

func TestResolveVariationErrors(t *testing.T) {
	t.Parallel()

	r := fixedResolver(t, 2026, time.May, 5)
	item := Item{ID: "1", Variations: []Variation{{ID: "a"}}}
	if _, err := r.Resolve(item, "zzz"); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
		t.Fatalf("unknown variation: unexpected error %v", err)
	}
	if _, err := r.Resolve(item, ""); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
		t.Fatalf("missing variation: unexpected error %v", err)
	}
	if _, err := r.Resolve(Item{}, ""); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidCatalogReference) {
		t.Fatalf("missing identity: unexpected error %v", err)
	}
}

func TestResolveControlsStock(t *testing.T) {
	t.Parallel()

	r := fixedResolver(t, 2026, time.May, 5)
	kit := pricing.Kit{
		{ItemID: "A", Quantity: dec("2"), UnitPrice: dec("10"), UnitCost: dec("4")},
		{ItemID: "B", Quantity: dec("1"), UnitPrice: dec("5"), UnitCost: dec("2")},
	}
	no := false

	cases := []struct {
		name      string
		item      Item
		variation string
		want      bool
	}{
		{"plain", Item{ID: "1"}, "", true},
		{"explicit false", Item{ID: "1", ControlsStock: &no}, "", false},
		{"kit without variations", Item{ID: "k", Components: kit}, "", false},
		{"kit with variations", Item{ID: "k", Components: kit, Variations: []Variation{{ID: "v", Stock: dec("3")}}}, "v", true},
	}
	for _, tc := range cases {
		tpl, err := r.Resolve(tc.item, tc.variation)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if tpl.ControlsStock != tc.want {
			t.Fatalf("%s: expected controls_stock=%v", tc.name, tc.want)
		}
	}

	tpl, err := r.Resolve(Item{ID: "k", Price: dec("999"), Components: kit}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tpl.UnitPrice.Equal(dec("25")) || !tpl.UnitCost.Equal(dec("10")) {
		t.Fatalf("expected kit rollup pricing, got %s / %s", tpl.UnitPrice, tpl.UnitCost)
	}
	tpl.Components[0].Quantity = dec("100")
	if !kit[0].Quantity.Equal(dec("2")) {
		t.Fatal("template components must not alias the catalog item")
	}
}

func ptr[T any](v T) *T { return &v }
