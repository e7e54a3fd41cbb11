package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/money"
)

// Field precedence for raw catalog records. The catalog API has served several
// payload shapes over time; the first key present wins.
var (
	idKeys         = []string{"id", "produto_id", "product_id", "codigo"}
	nameKeys       = []string{"nome", "name", "descricao", "description"}
	unitKeys       = []string{"unidade_medida", "unidade", "unit"}
	priceKeys      = []string{"preco_venda", "valor_venda", "preco", "price"}
	costKeys       = []string{"preco_custo", "custo", "cost"}
	stockKeys      = []string{"estoque", "quantidade", "stock"}
	controlsKeys   = []string{"controla_estoque", "controls_stock"}
	imageKeys      = []string{"imagem_principal", "imagem_url", "imagem", "image_url", "image"}
	variationKeys  = []string{"variacoes", "variations"}
	componentKeys  = []string{"composicao", "componentes", "composite", "components"}
	promotionKeys  = []string{"promocao", "promotion"}
	attributesKeys = []string{"atributos", "attributes"}

	variationIDKeys    = []string{"id", "variacao_id", "variation_id", "codigo"}
	variationPriceKeys = []string{"preco", "preco_venda", "price"}
	flatAttributeKeys  = map[string][]string{
		"color": {"cor", "color"},
		"size":  {"tamanho", "size"},
	}

	componentIDKeys    = []string{"produto_id", "item_id", "product_id", "id"}
	componentQtyKeys   = []string{"quantidade", "quantity", "qty"}
	componentPriceKeys = []string{"preco_venda", "preco", "unit_price", "price"}
	componentCostKeys  = []string{"preco_custo", "custo", "unit_cost", "cost"}

	promoActiveKeys = []string{"ativa", "active"}
	promoPriceKeys  = []string{"preco_promocional", "preco", "price"}
	promoStartKeys  = []string{"inicio", "data_inicio", "start"}
	promoEndKeys    = []string{"fim", "data_fim", "end"}

	flatPromoActiveKeys = []string{"promocao_ativa"}
	flatPromoPriceKeys  = []string{"preco_promocional"}
	flatPromoStartKeys  = []string{"promocao_inicio", "data_inicio_promocao"}
	flatPromoEndKeys    = []string{"promocao_fim", "data_fim_promocao"}
)

var validate = validator.New()

// Normalize converts a raw catalog record into an Item. It is the only place
// that knows the historical field names. A record without identity, or with a
// variation or component lacking one, is rejected with
// CodeInvalidCatalogReference.
func Normalize(raw map[string]any) (Item, error) {
	if raw == nil {
		return Item{}, pkgerrors.New(pkgerrors.CodeInvalidCatalogReference, "catalog record is empty")
	}

	item := Item{
		ID:       str(raw, idKeys...),
		Name:     str(raw, nameKeys...),
		Unit:     str(raw, unitKeys...),
		Price:    number(raw, priceKeys...),
		Cost:     number(raw, costKeys...),
		Stock:    number(raw, stockKeys...),
		ImageRef: str(raw, imageKeys...),
	}
	if v, ok := boolean(raw, controlsKeys...); ok {
		item.ControlsStock = &v
	}

	promo, err := normalizePromotion(raw)
	if err != nil {
		return Item{}, err
	}
	item.Promotion = promo

	for _, rv := range maps(raw, variationKeys...) {
		item.Variations = append(item.Variations, normalizeVariation(rv))
	}
	for _, rc := range maps(raw, componentKeys...) {
		item.Components = append(item.Components, normalizeComponent(rc))
	}

	if err := Validate(item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// NormalizeJSON decodes a JSON catalog record and normalizes it.
func NormalizeJSON(payload []byte) (Item, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Item{}, pkgerrors.Wrap(pkgerrors.CodeInvalidCatalogReference, err, "catalog record is not valid json")
	}
	return Normalize(raw)
}

// Validate checks the identity rules of an already typed item.
func Validate(item Item) error {
	if err := validate.Struct(item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInvalidCatalogReference, err, "catalog record is missing an identity").
			WithDetails(map[string]any{"item_id": item.ID})
	}
	return nil
}

func normalizeVariation(raw map[string]any) Variation {
	v := Variation{
		ID:       str(raw, variationIDKeys...),
		Stock:    number(raw, stockKeys...),
		ImageRef: str(raw, imageKeys...),
	}
	if price, ok := lookupDecimal(raw, variationPriceKeys...); ok && price.IsPositive() {
		v.Price = &price
	}
	attrs := map[string]string{}
	if nested, ok := first(raw, attributesKeys...).(map[string]any); ok {
		for k, val := range nested {
			if s := stringify(val); s != "" {
				attrs[k] = s
			}
		}
	}
	for name, keys := range flatAttributeKeys {
		if _, exists := attrs[name]; exists {
			continue
		}
		if s := str(raw, keys...); s != "" {
			attrs[name] = s
		}
	}
	if len(attrs) > 0 {
		v.Attributes = attrs
	}
	return v
}

func normalizeComponent(raw map[string]any) pricing.Component {
	return pricing.Component{
		ItemID:    str(raw, componentIDKeys...),
		Name:      str(raw, nameKeys...),
		Quantity:  number(raw, componentQtyKeys...).Round(money.QuantityScale),
		UnitPrice: number(raw, componentPriceKeys...),
		UnitCost:  number(raw, componentCostKeys...),
	}
}

func normalizePromotion(raw map[string]any) (*pricing.Promotion, error) {
	if nested, ok := first(raw, promotionKeys...).(map[string]any); ok {
		return buildPromotion(nested, promoActiveKeys, promoPriceKeys, promoStartKeys, promoEndKeys)
	}
	if first(raw, flatPromoActiveKeys...) == nil && first(raw, flatPromoPriceKeys...) == nil {
		return nil, nil
	}
	return buildPromotion(raw, flatPromoActiveKeys, flatPromoPriceKeys, flatPromoStartKeys, flatPromoEndKeys)
}

func buildPromotion(raw map[string]any, activeKeys, priceKeys, startKeys, endKeys []string) (*pricing.Promotion, error) {
	active, _ := boolean(raw, activeKeys...)
	promo := &pricing.Promotion{
		Active: active,
		Price:  number(raw, priceKeys...),
	}
	var err error
	if promo.Start, err = date(raw, startKeys...); err != nil {
		return nil, err
	}
	if promo.End, err = date(raw, endKeys...); err != nil {
		return nil, err
	}
	return promo, nil
}

func first(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func str(raw map[string]any, keys ...string) string {
	return stringify(first(raw, keys...))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func lookupDecimal(raw map[string]any, keys ...string) (decimal.Decimal, bool) {
	return money.ParseAny(first(raw, keys...))
}

func number(raw map[string]any, keys ...string) decimal.Decimal {
	d, _ := lookupDecimal(raw, keys...)
	return money.NonNegative(d)
}

func boolean(raw map[string]any, keys ...string) (bool, bool) {
	switch t := first(raw, keys...).(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "sim", "s", "yes", "y":
			return true, true
		case "false", "0", "nao", "não", "n", "no":
			return false, true
		}
	case json.Number:
		return t.String() != "0", true
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	}
	return false, false
}

// date parses "YYYY-MM-DD" as a civil date, or RFC3339 keeping its offset.
func date(raw map[string]any, keys ...string) (*time.Time, error) {
	v := first(raw, keys...)
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case string:
		s := strings.TrimSpace(t)
		if parsed, err := time.Parse(time.DateOnly, s); err == nil {
			return &parsed, nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			return &parsed, nil
		}
		if len(s) >= len(time.DateOnly) {
			if parsed, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
				return &parsed, nil
			}
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidCatalogReference, "invalid promotion date").
			WithDetails(map[string]any{"value": s})
	}
	return nil, pkgerrors.New(pkgerrors.CodeInvalidCatalogReference, "invalid promotion date")
}

func maps(raw map[string]any, keys ...string) []map[string]any {
	list, ok := first(raw, keys...).([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if m, ok := entry.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
