package models

import (
	"time"
)

// Promotion is an event-scoped voucher code with a validity window and an
// optional usage cap.
type Promotion struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Code      string    `db:"code" json:"code"`
	Discount  int64     `db:"discount" json:"discount"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	MaxUses   *int      `db:"max_uses" json:"max_uses,omitempty"`
	Uses      int       `db:"uses" json:"uses"`
}

// Active reports whether the promotion can still be applied at t.
func (p *Promotion) Active(t time.Time) bool {
	if t.Before(p.StartDate) || t.After(p.EndDate) {
		return false
	}
	if p.MaxUses != nil && p.Uses >= *p.MaxUses {
		return false
	}
	return true
}
