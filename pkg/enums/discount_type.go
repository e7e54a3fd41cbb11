package enums

import (
	"fmt"
	"strings"
)

// DiscountType selects how a discount value is interpreted.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

var validDiscountTypes = []DiscountType{
	DiscountPercent,
	DiscountFixed,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType. The legacy
// spellings "percentual", "%" and "valor" are accepted.
func ParseDiscountType(value string) (DiscountType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "percent", "percentual", "porcentagem", "%":
		return DiscountPercent, nil
	case "fixed", "valor", "fixo":
		return DiscountFixed, nil
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
