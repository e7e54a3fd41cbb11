package documents

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/money"
)

var (
	validate = validator.New()
	hundred  = decimal.NewFromInt(100)
)

// Payment is one settlement entry. Effective is what the shop receives after
// card fees.
type Payment struct {
	ID        uuid.UUID           `json:"id"`
	Method    enums.PaymentMethod `json:"method"`
	Nominal   decimal.Decimal     `json:"nominal"`
	Effective decimal.Decimal     `json:"effective"`
	PaidAt    time.Time           `json:"paid_at"`
}

// PaymentInput is a payment as entered at the counter.
type PaymentInput struct {
	Method string    `json:"method" validate:"required"`
	Amount string    `json:"amount" validate:"required"`
	PaidAt time.Time `json:"paid_at"`
}

// FeeTable holds card fee percentages.
type FeeTable struct {
	CreditPercent decimal.Decimal
	DebitPercent  decimal.Decimal
}

// Effective applies the fee for method to nominal, rounded to cents.
func (f FeeTable) Effective(method enums.PaymentMethod, nominal decimal.Decimal) decimal.Decimal {
	var pct decimal.Decimal
	switch method {
	case enums.PaymentMethodCreditCard:
		pct = f.CreditPercent
	case enums.PaymentMethodDebitCard:
		pct = f.DebitPercent
	default:
		return money.Round(nominal)
	}
	fee := money.Round(nominal.Mul(money.NonNegative(pct)).Div(hundred))
	return money.NonNegative(money.Round(nominal).Sub(fee))
}

func (f FeeTable) build(in PaymentInput, now time.Time) (Payment, error) {
	if err := validate.Struct(in); err != nil {
		return Payment{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment")
	}
	method, err := enums.ParsePaymentMethod(in.Method)
	if err != nil {
		return Payment{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	nominal, ok := money.ParseDecimal(in.Amount)
	if !ok || !nominal.IsPositive() {
		return Payment{}, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be a positive number").
			WithDetails(map[string]any{"amount": in.Amount})
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	nominal = money.Round(nominal)
	return Payment{
		ID:        uuid.New(),
		Method:    method,
		Nominal:   nominal,
		Effective: f.Effective(method, nominal),
		PaidAt:    paidAt.UTC(),
	}, nil
}
