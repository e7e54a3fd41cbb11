package documents

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/internal/pricing"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/db/models"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/outbox/payloads"
)

const displayCodeConstraint = "ux_documents_display_code"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	DB() *gorm.DB
}

type codeIssuer interface {
	Next(ctx context.Context, docType enums.DocumentType) (string, error)
}

// Repository stores documents, their lines and payments, and queues outbox
// events in the same transaction.
type Repository struct {
	db     txRunner
	codes  codeIssuer
	events *outbox.Service
}

// NewRepository wires the gorm document store.
func NewRepository(conn txRunner, codes codeIssuer, events *outbox.Service) (*Repository, error) {
	if conn == nil {
		return nil, errors.New("db is required")
	}
	if codes == nil {
		return nil, errors.New("display code issuer is required")
	}
	if events == nil {
		events = outbox.NewService(nil, nil)
	}
	return &Repository{db: conn, codes: codes, events: events}, nil
}

// Save inserts or replaces a document. An existing document keeps its display
// code unless its type changes, in which case a new code of the new type is
// issued. Payments are append-only.
func (r *Repository) Save(ctx context.Context, doc *Document) (Receipt, error) {
	if doc == nil || doc.ID == uuid.Nil {
		return Receipt{}, pkgerrors.New(pkgerrors.CodeValidation, "document id is required")
	}
	var receipt Receipt
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var existing models.Document
		err := tx.Where("id = ?", doc.ID).Take(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
		}

		code := doc.DisplayCode
		switch {
		case found && existing.Type == doc.Type:
			code = existing.DisplayCode
		case found || code == "":
			if code, err = r.codes.Next(ctx, doc.Type); err != nil {
				return err
			}
		}

		row, err := toModel(doc, code)
		if err != nil {
			return err
		}
		if found {
			row.CreatedAt = existing.CreatedAt
			err = tx.Omit(clause.Associations).Save(&row).Error
		} else {
			err = tx.Omit(clause.Associations).Create(&row).Error
		}
		if err != nil {
			if db.IsUniqueViolation(err, displayCodeConstraint) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "display code already used")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save document")
		}

		if err := tx.Where("document_id = ?", doc.ID).Delete(&models.DocumentLine{}).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace document lines")
		}
		if len(row.Lines) > 0 {
			if err := tx.Create(&row.Lines).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert document lines")
			}
		}
		for i := range row.Payments {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row.Payments[i]).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
			}
		}

		if err := r.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDocumentFinalized,
			AggregateType: enums.AggregateDocument,
			AggregateID:   doc.ID,
			Data: payloads.DocumentFinalizedEvent{
				DocumentID:      doc.ID,
				DisplayCode:     code,
				Type:            doc.Type,
				Total:           doc.Totals.Total,
				SaldoPendente:   doc.SaldoPendente,
				LineCount:       len(doc.Lines),
				ConvertedFromID: doc.ConvertedFrom,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue document event")
		}

		receipt = Receipt{ID: row.ID, DisplayCode: code}
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// Get loads a document with lines in cart order and payments by date.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	var row models.Document
	err := r.db.DB().WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Payments", func(tx *gorm.DB) *gorm.DB { return tx.Order("paid_at ASC") }).
		Where("id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found").
			WithDetails(map[string]any{"document_id": id.String()})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}
	return fromModel(row)
}

// AppendPayment records a payment and the new outstanding balance.
func (r *Repository) AppendPayment(ctx context.Context, documentID uuid.UUID, p Payment, saldo decimal.Decimal) error {
	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.Document{}).
			Where("id = ?", documentID).
			Updates(map[string]any{"saldo_pendente": saldo, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update balance")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		row := paymentModel(documentID, p)
		if err := tx.Create(&row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
		}
		if err := r.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRecorded,
			AggregateType: enums.AggregateDocument,
			AggregateID:   documentID,
			Data: payloads.PaymentRecordedEvent{
				DocumentID:    documentID,
				PaymentID:     p.ID,
				Method:        p.Method,
				Nominal:       p.Nominal,
				Effective:     p.Effective,
				SaldoPendente: saldo,
				Settled:       !saldo.IsPositive(),
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payment event")
		}
		return nil
	})
}

func toModel(doc *Document, code string) (models.Document, error) {
	row := models.Document{
		ID:              doc.ID,
		Type:            doc.Type,
		DisplayCode:     code,
		Name:            doc.Name,
		Notes:           doc.Notes,
		CustomerID:      doc.Customer.ID,
		CustomerName:    doc.Customer.Name,
		DiscountType:    doc.Discount.Type,
		DiscountValue:   doc.Discount.Value,
		Subtotal:        doc.Totals.Subtotal,
		DiscountApplied: doc.Totals.DiscountApplied,
		Freight:         doc.Totals.Freight,
		Total:           doc.Totals.Total,
		CostTotal:       doc.Totals.Cost,
		SaldoPendente:   doc.SaldoPendente,
		ConvertedFromID: doc.ConvertedFrom,
		Provenance:      doc.Provenance,
		CreatedAt:       doc.CreatedAt,
	}
	for _, l := range doc.Lines {
		components := "[]"
		if len(l.Components) > 0 {
			raw, err := json.Marshal(l.Components)
			if err != nil {
				return models.Document{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode components")
			}
			components = string(raw)
		}
		var promotion *string
		if l.Promotion != nil {
			raw, err := json.Marshal(l.Promotion)
			if err != nil {
				return models.Document{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode promotion")
			}
			s := string(raw)
			promotion = &s
		}
		lineID := l.ID
		if lineID == uuid.Nil {
			lineID = uuid.New()
		}
		row.Lines = append(row.Lines, models.DocumentLine{
			ID:             lineID,
			DocumentID:     doc.ID,
			Position:       l.Position,
			ItemID:         l.ItemID,
			VariationID:    l.VariationID,
			Name:           l.Name,
			VariationLabel: l.VariationLabel,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			UnitCost:       l.UnitCost,
			Total:          l.Total,
			ControlsStock:  l.ControlsStock,
			Components:     components,
			Promotion:      promotion,
		})
	}
	for _, p := range doc.Payments {
		row.Payments = append(row.Payments, paymentModel(doc.ID, p))
	}
	return row, nil
}

func paymentModel(documentID uuid.UUID, p Payment) models.Payment {
	return models.Payment{
		ID:         p.ID,
		DocumentID: documentID,
		Method:     p.Method,
		Nominal:    p.Nominal,
		Effective:  p.Effective,
		PaidAt:     p.PaidAt,
	}
}

func fromModel(row models.Document) (*Document, error) {
	doc := &Document{
		ID:            row.ID,
		Type:          row.Type,
		DisplayCode:   row.DisplayCode,
		Name:          row.Name,
		Notes:         row.Notes,
		Customer:      cart.Customer{ID: row.CustomerID, Name: row.CustomerName},
		Discount:      pricing.Discount{Type: row.DiscountType, Value: row.DiscountValue},
		SaldoPendente: row.SaldoPendente,
		ConvertedFrom: row.ConvertedFromID,
		Provenance:    row.Provenance,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		Totals: pricing.Totals{
			Subtotal:        row.Subtotal,
			DiscountApplied: row.DiscountApplied,
			Freight:         row.Freight,
			Total:           row.Total,
			Cost:            row.CostTotal,
		},
		Lines:    make([]Line, 0, len(row.Lines)),
		Payments: make([]Payment, 0, len(row.Payments)),
	}
	for _, l := range row.Lines {
		line := Line{
			ID:             l.ID,
			Position:       l.Position,
			ItemID:         l.ItemID,
			VariationID:    l.VariationID,
			Name:           l.Name,
			VariationLabel: l.VariationLabel,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			UnitCost:       l.UnitCost,
			Total:          l.Total,
			ControlsStock:  l.ControlsStock,
		}
		if l.Components != "" {
			if err := json.Unmarshal([]byte(l.Components), &line.Components); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode components")
			}
		}
		if l.Promotion != nil && *l.Promotion != "" {
			var promo pricing.PromotionSnapshot
			if err := json.Unmarshal([]byte(*l.Promotion), &promo); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode promotion")
			}
			line.Promotion = &promo
		}
		doc.Lines = append(doc.Lines, line)
	}
	for _, p := range row.Payments {
		doc.Payments = append(doc.Payments, Payment{
			ID:        p.ID,
			Method:    p.Method,
			Nominal:   p.Nominal,
			Effective: p.Effective,
			PaidAt:    p.PaidAt,
		})
	}
	return doc, nil
}
