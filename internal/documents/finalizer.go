package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/lock"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
)

const lockScope = "document"

// Store persists finalized documents.
type Store interface {
	Save(ctx context.Context, doc *Document) (Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*Document, error)
	AppendPayment(ctx context.Context, documentID uuid.UUID, payment Payment, saldo decimal.Decimal) error
}

// Inventory takes stock for a document. Committing the same document again
// must only apply the difference.
type Inventory interface {
	Commit(ctx context.Context, documentID uuid.UUID, demands []stock.Demand) error
}

// Locker serializes work on one document across processes.
type Locker interface {
	Acquire(ctx context.Context, scope, id string) (lock.Release, error)
}

// Deps wires a Finalizer.
type Deps struct {
	Store     Store
	Inventory Inventory
	Locker    Locker
	Fees      FeeTable
	Metrics   *metrics.FinalizeMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Request asks for a cart to become a document.
type Request struct {
	Cart     cart.Snapshot
	Type     enums.DocumentType
	Payments []PaymentInput
}

// LineFault points a finalize failure at a cart line.
type LineFault struct {
	LineID      uuid.UUID       `json:"line_id"`
	ItemID      string          `json:"item_id"`
	VariationID string          `json:"variation_id,omitempty"`
	Available   decimal.Decimal `json:"available"`
	Requested   decimal.Decimal `json:"requested"`
}

// Finalizer turns carts into stored documents and records payments.
type Finalizer struct {
	store     Store
	inventory Inventory
	locker    Locker
	fees      FeeTable
	metrics   *metrics.FinalizeMetrics
	logg      *logger.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewFinalizer validates deps.
func NewFinalizer(deps Deps) (*Finalizer, error) {
	if deps.Store == nil {
		return nil, errors.New("document store is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("inventory is required")
	}
	if deps.Locker == nil {
		return nil, errors.New("locker is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Finalizer{
		store:     deps.Store,
		inventory: deps.Inventory,
		locker:    deps.Locker,
		fees:      deps.Fees,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		now:       deps.Now,
	}, nil
}

// Finalize stores req.Cart as a document. Concurrent calls for the same cart
// share one execution, a retry after a failure never takes stock twice and a
// retry after success returns the stored document untouched.
// Every failure is a CodeFinalize error; the cart is left untouched.
func (f *Finalizer) Finalize(ctx context.Context, req Request) (*Document, error) {
	started := time.Now()
	doc, err := f.finalize(ctx, req)
	f.metrics.Observe(req.Type.String(), time.Since(started), err)
	if err != nil {
		fields := pkgerrors.Dump(err).Fields()
		fields["document_id"] = req.Cart.ID.String()
		fields["document_type"] = req.Type.String()
		f.logg.Error(f.logg.WithFields(ctx, fields), "finalize failed", err)
		return nil, err
	}
	return doc, nil
}

func (f *Finalizer) finalize(ctx context.Context, req Request) (*Document, error) {
	doc, err := f.prepare(ctx, req)
	if err != nil {
		return nil, finalizeError(err)
	}

	ch := f.group.DoChan(doc.ID.String(), func() (any, error) {
		return f.commit(context.WithoutCancel(ctx), doc, req.Cart)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(Document).clone()
		return &out, nil
	case <-ctx.Done():
		return nil, finalizeError(ctx.Err())
	}
}

func (f *Finalizer) prepare(ctx context.Context, req Request) (Document, error) {
	if !req.Type.IsValid() {
		return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "document type is invalid")
	}
	if req.Cart.Finalized {
		return Document{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already finalized")
	}
	if len(req.Cart.Lines) == 0 {
		return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "a document needs at least one line")
	}
	if req.Type == enums.DocumentQuote && len(req.Payments) > 0 {
		return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "quotes do not take payments")
	}

	now := f.now().UTC()
	doc := fromCart(req.Cart, req.Type, now)

	if src := req.Cart.Source; src != nil {
		doc.ID = src.ID
		previous, err := f.store.Get(ctx, src.ID)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return Document{}, err
		}
		prevType, prevCode := src.Type, src.DisplayCode
		if previous != nil {
			prevType, prevCode = previous.Type, previous.DisplayCode
			doc.Payments = append(doc.Payments, previous.Payments...)
			doc.CreatedAt = previous.CreatedAt
			doc.ConvertedFrom = previous.ConvertedFrom
			doc.Provenance = previous.Provenance
		}
		switch {
		case prevType == enums.DocumentSale && req.Type == enums.DocumentQuote:
			return Document{}, pkgerrors.New(pkgerrors.CodeValidation, "a sale cannot be turned back into a quote")
		case prevType == enums.DocumentQuote && req.Type == enums.DocumentSale:
			id := src.ID
			doc.ConvertedFrom = &id
			doc.Provenance = "converted from quote " + prevCode
		case prevType == req.Type:
			doc.DisplayCode = prevCode
		}
	}

	for _, in := range req.Payments {
		p, err := f.fees.build(in, now)
		if err != nil {
			return Document{}, err
		}
		doc.Payments = append(doc.Payments, p)
	}
	doc.recomputeBalance()
	return doc, nil
}

func (f *Finalizer) commit(ctx context.Context, doc Document, snap cart.Snapshot) (Document, error) {
	release, err := f.locker.Acquire(ctx, lockScope, doc.ID.String())
	if err != nil {
		return Document{}, finalizeError(err)
	}
	defer f.release(ctx, release, doc.ID)

	if snap.Source == nil {
		stored, err := f.replayed(ctx, doc)
		if err != nil {
			return Document{}, finalizeError(err)
		}
		if stored != nil {
			return *stored, nil
		}
	}

	if doc.Type == enums.DocumentSale {
		if err := f.inventory.Commit(ctx, doc.ID, doc.Demands()); err != nil {
			return Document{}, finalizeError(err).WithDetails(LineFaults(snap, stock.Shortages(err)))
		}
	}

	receipt, err := f.store.Save(ctx, &doc)
	if err != nil {
		return Document{}, finalizeError(err)
	}
	doc.ID = receipt.ID
	doc.DisplayCode = receipt.DisplayCode

	logCtx := f.logg.WithDocumentID(ctx, doc.ID.String())
	logCtx = f.logg.WithFields(logCtx, map[string]any{
		"display_code":   doc.DisplayCode,
		"document_type":  doc.Type.String(),
		"total":          doc.Totals.Total.StringFixed(2),
		"saldo_pendente": doc.SaldoPendente.StringFixed(2),
	})
	f.logg.Info(logCtx, "document finalized")
	return doc, nil
}

// replayed returns the document already stored for a cart that carries no
// source, so a retried finalize neither records its payments again nor
// rewrites the balance. Stored documents are changed through the edit path.
func (f *Finalizer) replayed(ctx context.Context, doc Document) (*Document, error) {
	stored, err := f.store.Get(ctx, doc.ID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.Type != doc.Type {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart was already finalized as "+stored.Type.String()).
			WithDetails(map[string]any{"document_id": doc.ID.String(), "display_code": stored.DisplayCode})
	}
	logCtx := f.logg.WithDocumentID(ctx, doc.ID.String())
	f.logg.Info(f.logg.WithField(logCtx, "display_code", stored.DisplayCode), "finalize replayed")
	return stored, nil
}

// AddPayment appends a payment to a stored sale until it is settled.
func (f *Finalizer) AddPayment(ctx context.Context, documentID uuid.UUID, in PaymentInput) (*Document, error) {
	if documentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id is required")
	}
	release, err := f.locker.Acquire(ctx, lockScope, documentID.String())
	if err != nil {
		return nil, err
	}
	defer f.release(ctx, release, documentID)

	doc, err := f.store.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Type != enums.DocumentSale {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quotes do not take payments")
	}
	if doc.Settled() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "document is already settled").
			WithDetails(map[string]any{"document_id": documentID.String()})
	}
	p, err := f.fees.build(in, f.now().UTC())
	if err != nil {
		return nil, err
	}
	doc.Payments = append(doc.Payments, p)
	doc.recomputeBalance()
	if err := f.store.AppendPayment(ctx, doc.ID, p, doc.SaldoPendente); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get loads a stored document.
func (f *Finalizer) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return f.store.Get(ctx, id)
}

func (f *Finalizer) release(ctx context.Context, release lock.Release, id uuid.UUID) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		logCtx := f.logg.WithDocumentID(ctx, id.String())
		f.logg.Warn(logCtx, "releasing document lock failed: "+err.Error())
	}
}

func finalizeError(err error) *pkgerrors.Error {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeFinalize {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeFinalize, err, "document could not be finalized")
}

// LineFaults maps stock shortages onto the cart lines that caused them.
func LineFaults(snap cart.Snapshot, shortages []stock.Shortage) []LineFault {
	var faults []LineFault
	for _, s := range shortages {
		for _, l := range snap.Lines {
			if !l.ControlsStock || l.ItemID != s.ItemID || l.VariationID != s.VariationID {
				continue
			}
			faults = append(faults, LineFault{
				LineID:      l.ID,
				ItemID:      s.ItemID,
				VariationID: s.VariationID,
				Available:   s.Available,
				Requested:   s.Requested,
			})
		}
	}
	return faults
}
