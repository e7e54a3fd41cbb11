package stock

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/angelmondragon/printshop-backend/pkg/errors"
)

const refreshConcurrency = 8

// Reader reads the authoritative available quantity for a ref.
type Reader interface {
	Available(ctx context.Context, ref Ref) (decimal.Decimal, error)
}

// Snapshot is a point-in-time view of available stock.
type Snapshot map[Ref]decimal.Decimal

// Demand is the total quantity a cart needs from one ref.
type Demand struct {
	Ref      Ref             `json:"ref"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Refresh reads a fresh snapshot for refs in parallel.
func Refresh(ctx context.Context, reader Reader, refs []Ref) (Snapshot, error) {
	if reader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stock reader is required")
	}
	unique := make([]Ref, 0, len(refs))
	seen := make(map[Ref]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		unique = append(unique, ref)
	}

	var (
		mu   sync.Mutex
		snap = make(Snapshot, len(unique))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, ref := range unique {
		ref := ref
		g.Go(func() error {
			qty, err := reader.Available(gctx, ref)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read available stock").
					WithDetails(map[string]any{"item_id": ref.ItemID, "variation_id": ref.VariationID})
			}
			mu.Lock()
			snap[ref] = qty
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Verify checks every demand against snapshot and reports all shortages in a
// single InsufficientStock error. Refs missing from the snapshot count as zero.
func Verify(snapshot Snapshot, demands []Demand) error {
	var shortages []Shortage
	for _, d := range demands {
		available := snapshot[d.Ref]
		if d.Quantity.GreaterThan(available) {
			shortages = append(shortages, Shortage{
				ItemID:      d.Ref.ItemID,
				VariationID: d.Ref.VariationID,
				Available:   available,
				Requested:   d.Quantity,
			})
		}
	}
	if len(shortages) == 0 {
		return nil
	}
	sort.Slice(shortages, func(i, j int) bool {
		if shortages[i].ItemID != shortages[j].ItemID {
			return shortages[i].ItemID < shortages[j].ItemID
		}
		return shortages[i].VariationID < shortages[j].VariationID
	})
	return InsufficientStock(shortages...)
}

// Aggregate merges demands on the same ref, dropping non-positive quantities.
func Aggregate(demands []Demand) []Demand {
	index := map[Ref]int{}
	out := make([]Demand, 0, len(demands))
	for _, d := range demands {
		if !d.Quantity.IsPositive() {
			continue
		}
		if i, ok := index[d.Ref]; ok {
			out[i].Quantity = out[i].Quantity.Add(d.Quantity)
			continue
		}
		index[d.Ref] = len(out)
		out = append(out, d)
	}
	return out
}

// Refs lists the refs of demands in order.
func Refs(demands []Demand) []Ref {
	out := make([]Ref, 0, len(demands))
	for _, d := range demands {
		out = append(out, d.Ref)
	}
	return out
}
