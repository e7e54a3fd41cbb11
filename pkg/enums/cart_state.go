package enums

// CartState is the derived lifecycle position of an in-progress cart or quote.
type CartState string

const (
	CartStateEmpty     CartState = "empty"
	CartStateBuilding  CartState = "building"
	CartStateReady     CartState = "ready_to_finalize"
	CartStateFinalized CartState = "finalized"
)

// String implements fmt.Stringer.
func (c CartState) String() string {
	return string(c)
}

// Mutable reports whether the cart still accepts edits.
func (c CartState) Mutable() bool {
	return c != CartStateFinalized
}
