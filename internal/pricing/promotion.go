package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promotion is a catalog price override valid over an inclusive day window.
type Promotion struct {
	Active bool            `json:"active"`
	Start  *time.Time      `json:"start,omitempty"`
	End    *time.Time      `json:"end,omitempty"`
	Price  decimal.Decimal `json:"price"`
}

// IsActive reports whether the promotion applies on today's calendar day.
// Start and end are compared as calendar dates in their own location, so a
// date-only boundary means that whole day.
func (p *Promotion) IsActive(today time.Time) bool {
	if p == nil || !p.Active {
		return false
	}
	day := civilDay(today)
	if p.Start != nil && day < civilDay(*p.Start) {
		return false
	}
	if p.End != nil && day > civilDay(*p.End) {
		return false
	}
	return true
}

// Applies reports whether the promotion is active and carries a usable price.
func (p *Promotion) Applies(today time.Time) bool {
	return p.IsActive(today) && p.Price.IsPositive()
}

// Snapshot freezes the promotion as applied to a line.
func (p *Promotion) Snapshot(today time.Time) *PromotionSnapshot {
	if p == nil {
		return nil
	}
	return &PromotionSnapshot{
		Price:     p.Price,
		Start:     copyTime(p.Start),
		End:       copyTime(p.End),
		AppliedOn: time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location()),
	}
}

// PromotionSnapshot records which promotion priced a line.
type PromotionSnapshot struct {
	Price     decimal.Decimal `json:"price"`
	Start     *time.Time      `json:"start,omitempty"`
	End       *time.Time      `json:"end,omitempty"`
	AppliedOn time.Time       `json:"applied_on"`
}

func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
