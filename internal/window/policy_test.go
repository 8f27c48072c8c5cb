package window

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"WalletGuard/internal/model"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func spentRecord(dayAgo, monthAgo time.Duration) model.SpendingRecord {
	rec := model.NewSpendingRecord("GWALLET", base)
	rec.DailySpent = decimal.NewFromInt(400)
	rec.MonthlySpent = decimal.NewFromInt(2400)
	rec.DayStart = base.Add(-dayAgo)
	rec.MonthStart = base.Add(-monthAgo)
	return rec
}

func TestApply_Windows(t *testing.T) {
	tests := []struct {
		name        string
		dayAgo      time.Duration
		monthAgo    time.Duration
		wantDaily   int64
		wantMonthly int64
		wantChanged bool
	}{
		{"fresh", time.Hour, time.Hour, 400, 2400, false},
		{"exactly one day keeps counters", Day, Day, 400, 2400, false},
		{"day rolled", 25 * time.Hour, 25 * time.Hour, 0, 2400, true},
		{"month rolled only", time.Hour, Month + time.Second, 400, 0, true},
		{"both rolled", 31 * Day, 31 * Day, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := spentRecord(tt.dayAgo, tt.monthAgo)
			changed := Default.Apply(&rec, base)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if !rec.DailySpent.Equal(decimal.NewFromInt(tt.wantDaily)) {
				t.Errorf("daily spent = %s, want %d", rec.DailySpent, tt.wantDaily)
			}
			if !rec.MonthlySpent.Equal(decimal.NewFromInt(tt.wantMonthly)) {
				t.Errorf("monthly spent = %s, want %d", rec.MonthlySpent, tt.wantMonthly)
			}
		})
	}
}

func TestApply_RestartsWindowAtNow(t *testing.T) {
	rec := spentRecord(25*time.Hour, time.Hour)
	monthStart := rec.MonthStart
	Default.Apply(&rec, base)
	if !rec.DayStart.Equal(base) {
		t.Errorf("day start = %v, want %v", rec.DayStart, base)
	}
	if !rec.MonthStart.Equal(monthStart) {
		t.Errorf("month start moved to %v", rec.MonthStart)
	}
}

func TestApply_Idempotent(t *testing.T) {
	once := spentRecord(26*time.Hour, 40*Day)
	Default.Apply(&once, base)

	twice := spentRecord(26*time.Hour, 40*Day)
	Default.Apply(&twice, base)
	if Default.Apply(&twice, base) {
		t.Error("second apply reported a change")
	}
	if !once.DailySpent.Equal(twice.DailySpent) || !once.MonthlySpent.Equal(twice.MonthlySpent) ||
		!once.DayStart.Equal(twice.DayStart) || !once.MonthStart.Equal(twice.MonthStart) {
		t.Errorf("apply not idempotent: once=%+v twice=%+v", once, twice)
	}
}

func TestApply_ClockBehindStart(t *testing.T) {
	rec := spentRecord(-time.Hour, -time.Hour)
	if Default.Apply(&rec, base) {
		t.Error("expected no reset when now precedes window start")
	}
}

func TestApply_CustomLengths(t *testing.T) {
	p := Policy{Day: time.Minute, Month: time.Hour}
	rec := spentRecord(2*time.Minute, 30*time.Minute)
	p.Apply(&rec, base)
	if !rec.DailySpent.IsZero() {
		t.Errorf("daily spent = %s, want 0", rec.DailySpent)
	}
	if rec.MonthlySpent.IsZero() {
		t.Error("monthly spent should survive a 30 minute old window")
	}
}

func TestReset_KeepsStartsMonotonic(t *testing.T) {
	rec := spentRecord(-time.Hour, 2*time.Hour)
	future := rec.DayStart
	Default.Reset(&rec, base)
	if !rec.DailySpent.IsZero() || !rec.MonthlySpent.IsZero() {
		t.Fatalf("counters not zeroed: %+v", rec)
	}
	if !rec.DayStart.Equal(future) {
		t.Errorf("day start moved backwards to %v", rec.DayStart)
	}
	if !rec.MonthStart.Equal(base) {
		t.Errorf("month start = %v, want %v", rec.MonthStart, base)
	}
}

func TestApply_DropsReservationsFromClosedWindows(t *testing.T) {
	rec := spentRecord(25*time.Hour, 31*Day)
	stale := model.Reservation{ID: "stale", DayStart: rec.DayStart, MonthStart: rec.MonthStart}
	rec.Pending = []model.Reservation{stale}

	monthOnly := spentRecord(25*time.Hour, time.Hour)
	keep := model.Reservation{ID: "keep", DayStart: monthOnly.DayStart, MonthStart: monthOnly.MonthStart}
	monthOnly.Pending = []model.Reservation{keep}

	Default.Apply(&rec, base)
	if len(rec.Pending) != 0 {
		t.Errorf("pending = %+v, want none once both windows closed", rec.Pending)
	}

	Default.Apply(&monthOnly, base)
	if len(monthOnly.Pending) != 1 || monthOnly.Pending[0].ID != "keep" {
		t.Errorf("pending = %+v, want the reservation whose month window is still open", monthOnly.Pending)
	}
}

func TestReset_ForgetsReservations(t *testing.T) {
	rec := spentRecord(time.Hour, time.Hour)
	rec.Pending = []model.Reservation{{ID: "r1", DayStart: rec.DayStart, MonthStart: rec.MonthStart}}
	Default.Reset(&rec, base)
	if rec.Pending != nil {
		t.Errorf("pending = %+v, want nil after reset", rec.Pending)
	}
}
