package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// Document is the header row of a finalized sale or quote.
type Document struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Type            enums.DocumentType `gorm:"column:type;not null"`
	DisplayCode     string             `gorm:"column:display_code;not null;uniqueIndex:ux_documents_display_code"`
	Name            string             `gorm:"column:name;not null;default:''"`
	Notes           string             `gorm:"column:notes;not null;default:''"`
	CustomerID      *string            `gorm:"column:customer_id"`
	CustomerName    string             `gorm:"column:customer_name;not null;default:''"`
	DiscountType    enums.DiscountType `gorm:"column:discount_type;not null"`
	DiscountValue   decimal.Decimal    `gorm:"column:discount_value;type:numeric(14,4);not null"`
	Subtotal        decimal.Decimal    `gorm:"column:subtotal;type:numeric(14,2);not null"`
	DiscountApplied decimal.Decimal    `gorm:"column:discount_applied;type:numeric(14,2);not null"`
	Freight         decimal.Decimal    `gorm:"column:freight;type:numeric(14,2);not null"`
	Total           decimal.Decimal    `gorm:"column:total;type:numeric(14,2);not null"`
	CostTotal       decimal.Decimal    `gorm:"column:cost_total;type:numeric(14,2);not null"`
	SaldoPendente   decimal.Decimal    `gorm:"column:saldo_pendente;type:numeric(14,2);not null"`
	ConvertedFromID *uuid.UUID         `gorm:"column:converted_from_id;type:uuid"`
	Provenance      string             `gorm:"column:provenance;not null;default:''"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Lines    []DocumentLine `gorm:"foreignKey:DocumentID"`
	Payments []Payment      `gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string { return "documents" }

// DocumentLine snapshots a cart line by value at commit time.
type DocumentLine struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID     uuid.UUID       `gorm:"column:document_id;type:uuid;not null;index"`
	Position       int             `gorm:"column:position;not null"`
	ItemID         string          `gorm:"column:item_id;not null"`
	VariationID    string          `gorm:"column:variation_id;not null;default:''"`
	Name           string          `gorm:"column:name;not null"`
	VariationLabel string          `gorm:"column:variation_label;not null;default:''"`
	Unit           string          `gorm:"column:unit;not null;default:''"`
	Quantity       decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(14,2);not null"`
	UnitCost       decimal.Decimal `gorm:"column:unit_cost;type:numeric(14,2);not null"`
	Total          decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null"`
	ControlsStock  bool            `gorm:"column:controls_stock;not null"`
	Components     string          `gorm:"column:components;type:jsonb;not null;default:'[]'"`
	Promotion      *string         `gorm:"column:promotion;type:jsonb"`
}

func (DocumentLine) TableName() string { return "document_lines" }

// Payment is an append-only settlement entry against a sale.
type Payment struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID uuid.UUID           `gorm:"column:document_id;type:uuid;not null;index"`
	Method     enums.PaymentMethod `gorm:"column:method;not null"`
	Nominal    decimal.Decimal     `gorm:"column:nominal;type:numeric(14,2);not null"`
	Effective  decimal.Decimal     `gorm:"column:effective;type:numeric(14,2);not null"`
	PaidAt     time.Time           `gorm:"column:paid_at;not null"`
}

func (Payment) TableName() string { return "payments" }
