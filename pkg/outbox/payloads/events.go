package payloads

import (
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentFinalizedEvent is emitted once a sale or quote is committed.
type DocumentFinalizedEvent struct {
	DocumentID      uuid.UUID          `json:"document_id"`
	DisplayCode     string             `json:"display_code"`
	Type            enums.DocumentType `json:"type"`
	Total           decimal.Decimal    `json:"total"`
	SaldoPendente   decimal.Decimal    `json:"saldo_pendente"`
	LineCount       int                `json:"line_count"`
	ConvertedFromID *uuid.UUID         `json:"converted_from_id,omitempty"`
}

// PaymentRecordedEvent is emitted whenever a payment is appended to a sale.
type PaymentRecordedEvent struct {
	DocumentID    uuid.UUID           `json:"document_id"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	Method        enums.PaymentMethod `json:"method"`
	Nominal       decimal.Decimal     `json:"nominal"`
	Effective     decimal.Decimal     `json:"effective"`
	SaldoPendente decimal.Decimal     `json:"saldo_pendente"`
	Settled       bool                `json:"settled"`
}
