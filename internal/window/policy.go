// Package window decides when a wallet's rolling spend windows roll over.
package window

import (
	"time"

	"github.com/shopspring/decimal"

	"WalletGuard/internal/model"
)

const (
	Day   = 24 * time.Hour
	Month = 30 * Day
)

// Policy holds the rolling window lengths. Windows are fixed durations measured
// from the start of the window, not calendar days or months.
type Policy struct {
	Day   time.Duration
	Month time.Duration
}

// Default is the 24h / 30x24h policy.
var Default = Policy{Day: Day, Month: Month}

// Apply zeroes whichever counters have outlived their window and restarts that
// window at now. Pending reservations whose day and month windows have both
// closed are dropped. It reports whether the record changed. Applying it twice
// with the same now is the same as applying it once.
func (p Policy) Apply(rec *model.SpendingRecord, now time.Time) bool {
	changed := false
	if now.Sub(rec.DayStart) > p.dayLength() {
		rec.DailySpent = decimal.Zero
		rec.DayStart = now
		changed = true
	}
	if now.Sub(rec.MonthStart) > p.monthLength() {
		rec.MonthlySpent = decimal.Zero
		rec.MonthStart = now
		changed = true
	}
	if changed {
		prunePending(rec)
	}
	return changed
}

func prunePending(rec *model.SpendingRecord) {
	var live []model.Reservation
	for _, res := range rec.Pending {
		if res.DayStart.Equal(rec.DayStart) || res.MonthStart.Equal(rec.MonthStart) {
			live = append(live, res)
		}
	}
	rec.Pending = live
}

// Reset zeroes both counters, restarts both windows at now and forgets every
// pending reservation. Window starts never move backwards.
func (p Policy) Reset(rec *model.SpendingRecord, now time.Time) {
	rec.DailySpent = decimal.Zero
	rec.MonthlySpent = decimal.Zero
	rec.DayStart = latest(rec.DayStart, now)
	rec.MonthStart = latest(rec.MonthStart, now)
	rec.Pending = nil
}

func (p Policy) dayLength() time.Duration {
	if p.Day <= 0 {
		return Day
	}
	return p.Day
}

func (p Policy) monthLength() time.Duration {
	if p.Month <= 0 {
		return Month
	}
	return p.Month
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
