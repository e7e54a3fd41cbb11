package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem tracks the authoritative available quantity per item and
// variation. Items without variations use an empty variation id.
type InventoryItem struct {
	ItemID       string          `gorm:"column:item_id;primaryKey"`
	VariationID  string          `gorm:"column:variation_id;primaryKey"`
	AvailableQty decimal.Decimal `gorm:"column:available_qty;type:numeric(14,4);not null"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItem) TableName() string { return "inventory_items" }

// StockDecrement records how much a document has taken from an inventory row.
// Re-applying the same document reconciles against these rows instead of
// decrementing again.
type StockDecrement struct {
	DocumentID  uuid.UUID       `gorm:"column:document_id;type:uuid;primaryKey"`
	ItemID      string          `gorm:"column:item_id;primaryKey"`
	VariationID string          `gorm:"column:variation_id;primaryKey"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(14,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (StockDecrement) TableName() string { return "stock_decrements" }
