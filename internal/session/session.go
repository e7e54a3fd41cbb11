package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/printshop-backend/internal/cart"
	"github.com/angelmondragon/printshop-backend/internal/catalog"
	"github.com/angelmondragon/printshop-backend/internal/documents"
	"github.com/angelmondragon/printshop-backend/internal/drafts"
	"github.com/angelmondragon/printshop-backend/internal/stock"
	"github.com/angelmondragon/printshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

// Finalizer is the document side of a session.
type Finalizer interface {
	Finalize(ctx context.Context, req documents.Request) (*documents.Document, error)
	Get(ctx context.Context, id uuid.UUID) (*documents.Document, error)
	AddPayment(ctx context.Context, id uuid.UUID, in documents.PaymentInput) (*documents.Document, error)
}

// Deps wires a Session.
type Deps struct {
	Resolver     *catalog.Resolver
	Drafts       drafts.Store
	Stock        stock.Reader
	Finalizer    Finalizer
	DraftOptions drafts.Options
	Logger       *logger.Logger
}

// Session is one user's editing context: a cart, its draft slot and the
// finalizer it commits through.
type Session struct {
	key       string
	cart      *cart.Cart
	drafts    *drafts.Manager
	finalizer Finalizer
	stock     stock.Reader
	logg      *logger.Logger
	restored  bool

	mu   sync.Mutex
	held map[stock.Ref]decimal.Decimal
}

// Open starts a session. With a target the stored document is loaded for
// editing and the draft slot is left alone; without one the session's draft
// is restored, falling back to an empty cart when it is absent or unreadable.
func Open(ctx context.Context, deps Deps, sessionKey string, target *uuid.UUID) (*Session, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	switch {
	case sessionKey == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session key is required")
	case deps.Resolver == nil:
		return nil, errors.New("catalog resolver is required")
	case deps.Drafts == nil:
		return nil, errors.New("draft store is required")
	case deps.Stock == nil:
		return nil, errors.New("stock reader is required")
	case deps.Finalizer == nil:
		return nil, errors.New("finalizer is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.DraftOptions.Logger == nil {
		deps.DraftOptions.Logger = deps.Logger
	}

	c := cart.New(deps.Resolver)
	mgr, err := drafts.NewManager(deps.Drafts, c, sessionKey, deps.DraftOptions)
	if err != nil {
		return nil, err
	}
	s := &Session{
		key:       sessionKey,
		cart:      c,
		drafts:    mgr,
		finalizer: deps.Finalizer,
		stock:     deps.Stock,
		logg:      deps.Logger,
	}

	if target != nil {
		if err := s.load(ctx, *target); err != nil {
			mgr.Close()
			return nil, err
		}
		return s, nil
	}

	// Restore logs its own failures; the session goes on with an empty cart.
	s.restored, _ = mgr.Restore(ctx)
	return s, nil
}

func (s *Session) load(ctx context.Context, id uuid.UUID) error {
	doc, err := s.finalizer.Get(ctx, id)
	if err != nil {
		return err
	}
	var refs []stock.Ref
	for _, l := range doc.Lines {
		if l.ControlsStock {
			refs = append(refs, stock.Ref{ItemID: l.ItemID, VariationID: l.VariationID})
		}
	}
	levels, err := stock.Refresh(ctx, s.stock, refs)
	if err != nil {
		return err
	}
	if err := s.cart.Restore(doc.CartSnapshot(levels)); err != nil {
		return err
	}

	held := map[stock.Ref]decimal.Decimal{}
	for _, d := range doc.Demands() {
		held[d.Ref] = d.Quantity
	}
	s.mu.Lock()
	s.held = held
	s.mu.Unlock()

	logCtx := s.logg.WithSessionKey(ctx, s.key)
	logCtx = s.logg.WithDocumentID(logCtx, doc.ID.String())
	s.logg.Info(logCtx, "document opened for editing")
	return nil
}

// Cart is the session's cart. Mutations on it schedule draft saves.
func (s *Session) Cart() *cart.Cart { return s.cart }

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// Restored reports whether Open picked up a saved draft.
func (s *Session) Restored() bool { return s.restored }

// DraftState is the autosave state of the session's draft slot.
func (s *Session) DraftState() enums.DraftSaveState { return s.drafts.State() }

// FlushDraft saves any pending draft change now.
func (s *Session) FlushDraft(ctx context.Context) error { return s.drafts.Flush(ctx) }

// Finalize re-checks stock against a fresh snapshot, commits the cart as a
// document, marks the cart finalized and clears the draft slot. On failure the
// cart is left as it was so the caller can fix it and retry.
func (s *Session) Finalize(ctx context.Context, docType enums.DocumentType, payments ...documents.PaymentInput) (*documents.Document, error) {
	snap := s.cart.Snapshot()
	if docType == enums.DocumentSale {
		if err := s.verifyStock(ctx, snap); err != nil {
			return nil, err
		}
	}

	doc, err := s.finalizer.Finalize(ctx, documents.Request{Cart: snap, Type: docType, Payments: payments})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithSessionKey(ctx, s.key)
	if err := s.cart.MarkFinalized(); err != nil {
		s.logg.Warn(logCtx, "cart could not be marked finalized: "+err.Error())
	}
	// Clearing the slot is best-effort and Discard logs its own failure.
	_ = s.drafts.Discard(ctx)
	return doc, nil
}

func (s *Session) verifyStock(ctx context.Context, snap cart.Snapshot) error {
	demands := snap.Demands()
	if len(demands) == 0 {
		return nil
	}
	levels, err := stock.Refresh(ctx, s.stock, stock.Refs(demands))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeFinalize, err, "stock could not be checked")
	}
	s.mu.Lock()
	for ref, qty := range s.held {
		levels[ref] = levels[ref].Add(qty)
	}
	s.mu.Unlock()
	if err := stock.Verify(levels, demands); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeFinalize, err, "document could not be finalized").
			WithDetails(documents.LineFaults(snap, stock.Shortages(err)))
	}
	return nil
}

// AddPayment records a payment against a stored sale.
func (s *Session) AddPayment(ctx context.Context, documentID uuid.UUID, in documents.PaymentInput) (*documents.Document, error) {
	return s.finalizer.AddPayment(ctx, documentID, in)
}

// Reset starts over with an empty cart and clears the draft slot. A failed
// clear is logged and otherwise ignored.
func (s *Session) Reset(ctx context.Context) error {
	if s.cart.State() == enums.CartStateFinalized {
		s.cart.Reopen()
	} else if err := s.cart.Clear(); err != nil {
		return err
	}
	s.mu.Lock()
	s.held = nil
	s.mu.Unlock()
	_ = s.drafts.Discard(ctx)
	return nil
}

// Close stops the autosave timer and any in-flight save.
func (s *Session) Close() {
	s.drafts.Close()
}
