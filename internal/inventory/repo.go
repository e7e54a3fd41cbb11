package inventory

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

// Repository is the authoritative stock store. Decrements are recorded per
// document in stock_decrements so committing the same document twice never
// takes stock twice.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to a gorm connection.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Repository{db: db}, nil
}

// Available returns the available quantity of ref. Unknown rows have none.
func (r *Repository) Available(ctx context.Context, ref stock.Ref) (decimal.Decimal, error) {
	var row models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND variation_id = ?", ref.ItemID, ref.VariationID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return row.AvailableQty, nil
}

// Set overwrites the available quantity of ref, creating the row if needed.
func (r *Repository) Set(ctx context.Context, ref stock.Ref, qty decimal.Decimal) error {
	if ref.ItemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if qty.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "available quantity cannot be negative")
	}
	row := models.InventoryItem{ItemID: ref.ItemID, VariationID: ref.VariationID, AvailableQty: qty}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}, {Name: "variation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"available_qty", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set inventory")
	}
	return nil
}

// Commit makes the stock taken by documentID equal demands. The first commit
// decrements everything; a repeated commit with the same demands changes
// nothing; an edited document only applies the difference, returning stock
// for reduced lines. Any shortfall rolls back the whole commit and returns
// CodeInsufficientStock listing every short row.
func (r *Repository) Commit(ctx context.Context, documentID uuid.UUID, demands []stock.Demand) error {
	if documentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "document id is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prior []models.StockDecrement
		if err := tx.Where("document_id = ?", documentID).Find(&prior).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock ledger")
		}

		taken := map[stock.Ref]decimal.Decimal{}
		for _, row := range prior {
			taken[stock.Ref{ItemID: row.ItemID, VariationID: row.VariationID}] = row.Quantity
		}
		wanted := map[stock.Ref]decimal.Decimal{}
		for _, d := range stock.Aggregate(demands) {
			wanted[d.Ref] = d.Quantity
		}

		var shortages []stock.Shortage
		for _, ref := range unionRefs(taken, wanted) {
			delta := wanted[ref].Sub(taken[ref])
			switch {
			case delta.IsPositive():
				ok, err := take(tx, ref, delta)
				if err != nil {
					return err
				}
				if !ok {
					available, err := availableIn(tx, ref)
					if err != nil {
						return err
					}
					shortages = append(shortages, stock.Shortage{
						ItemID:      ref.ItemID,
						VariationID: ref.VariationID,
						Available:   available,
						Requested:   delta,
					})
				}
			case delta.IsNegative():
				if err := giveBack(tx, ref, delta.Neg()); err != nil {
					return err
				}
			}
		}
		if len(shortages) > 0 {
			return stock.InsufficientStock(shortages...)
		}

		return writeLedger(tx, documentID, taken, wanted)
	})
}

// Taken lists what the ledger says documentID currently holds.
func (r *Repository) Taken(ctx context.Context, documentID uuid.UUID) ([]stock.Demand, error) {
	var rows []models.StockDecrement
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("item_id, variation_id").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock ledger")
	}
	out := make([]stock.Demand, 0, len(rows))
	for _, row := range rows {
		out = append(out, stock.Demand{
			Ref:      stock.Ref{ItemID: row.ItemID, VariationID: row.VariationID},
			Quantity: row.Quantity,
		})
	}
	return out, nil
}

func take(tx *gorm.DB, ref stock.Ref, qty decimal.Decimal) (bool, error) {
	res := tx.Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE item_id = ? AND variation_id = ? AND available_qty >= ?
	`, qty, ref.ItemID, ref.VariationID, qty)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement inventory")
	}
	return res.RowsAffected == 1, nil
}

func giveBack(tx *gorm.DB, ref stock.Ref, qty decimal.Decimal) error {
	res := tx.Exec(`
		UPDATE inventory_items
		SET available_qty = available_qty + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE item_id = ? AND variation_id = ?
	`, qty, ref.ItemID, ref.VariationID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock inventory")
	}
	return nil
}

func availableIn(tx *gorm.DB, ref stock.Ref) (decimal.Decimal, error) {
	var row models.InventoryItem
	err := tx.Where("item_id = ? AND variation_id = ?", ref.ItemID, ref.VariationID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return row.AvailableQty, nil
}

func writeLedger(tx *gorm.DB, documentID uuid.UUID, taken, wanted map[stock.Ref]decimal.Decimal) error {
	for ref := range taken {
		if _, keep := wanted[ref]; keep {
			continue
		}
		if err := tx.Where("document_id = ? AND item_id = ? AND variation_id = ?", documentID, ref.ItemID, ref.VariationID).
			Delete(&models.StockDecrement{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock ledger")
		}
	}
	for ref, qty := range wanted {
		if prev, ok := taken[ref]; ok && prev.Equal(qty) {
			continue
		}
		row := models.StockDecrement{DocumentID: documentID, ItemID: ref.ItemID, VariationID: ref.VariationID, Quantity: qty}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "item_id"}, {Name: "variation_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock ledger")
		}
	}
	return nil
}

func unionRefs(a, b map[stock.Ref]decimal.Decimal) []stock.Ref {
	seen := map[stock.Ref]struct{}{}
	out := make([]stock.Ref, 0, len(a)+len(b))
	for _, m := range []map[stock.Ref]decimal.Decimal{a, b} {
		for ref := range m {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].VariationID < out[j].VariationID
	})
	return out
}
