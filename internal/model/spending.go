package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Default limits applied to a wallet the first time it is seen.
var (
	DefaultDailyLimit   = decimal.NewFromInt(1000)
	DefaultMonthlyLimit = decimal.NewFromInt(10000)
	DefaultMaxTxAmount  = decimal.NewFromInt(1000)
)

// SpendingRecord tracks a wallet's limits, counters and freeze flag.
type SpendingRecord struct {
	WalletKey    string          `json:"walletKey"`
	DailyLimit   decimal.Decimal `json:"dailyLimit"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
	DailySpent   decimal.Decimal `json:"dailySpent"`
	MonthlySpent decimal.Decimal `json:"monthlySpent"`
	DayStart     time.Time       `json:"dayStart"`
	MonthStart   time.Time       `json:"monthStart"`
	IsFrozen     bool            `json:"isFrozen"`
	UpdatedAt    time.Time       `json:"updatedAt"`

	// Pending holds reservations that can still be released, oldest first.
	Pending []Reservation `json:"pending,omitempty"`
}

// MaxPendingReservations bounds SpendingRecord.Pending. The oldest entry is
// dropped first and can no longer be released.
const MaxPendingReservations = 50

// Reservation is the allowance consumed by one approved validation. It can be
// released once if the transfer never reaches the ledger.
type Reservation struct {
	ID         string          `json:"id"`
	WalletKey  string          `json:"walletKey"`
	Amount     decimal.Decimal `json:"amount"`
	DayStart   time.Time       `json:"dayStart"`
	MonthStart time.Time       `json:"monthStart"`
}

// AddPending appends res to the pending list.
func (r *SpendingRecord) AddPending(res Reservation) {
	pending := make([]Reservation, 0, len(r.Pending)+1)
	pending = append(pending, r.Pending...)
	pending = append(pending, res)
	if n := len(pending) - MaxPendingReservations; n > 0 {
		pending = pending[n:]
	}
	r.Pending = pending
}

// TakePending removes the reservation with id and returns it.
func (r *SpendingRecord) TakePending(id string) (Reservation, bool) {
	for i, p := range r.Pending {
		if p.ID != id {
			continue
		}
		rest := make([]Reservation, 0, len(r.Pending)-1)
		rest = append(rest, r.Pending[:i]...)
		rest = append(rest, r.Pending[i+1:]...)
		if len(rest) == 0 {
			rest = nil
		}
		r.Pending = rest
		return p, true
	}
	return Reservation{}, false
}

// NewSpendingRecord returns the default record for a wallet with both windows starting at now.
func NewSpendingRecord(walletKey string, now time.Time) SpendingRecord {
	return SpendingRecord{
		WalletKey:    walletKey,
		DailyLimit:   DefaultDailyLimit,
		MonthlyLimit: DefaultMonthlyLimit,
		DailySpent:   decimal.Zero,
		MonthlySpent: decimal.Zero,
		DayStart:     now,
		MonthStart:   now,
	}
}

// DailyRemaining returns how much can still be spent in the current daily window.
func (r SpendingRecord) DailyRemaining() decimal.Decimal {
	return remaining(r.DailyLimit, r.DailySpent)
}

// MonthlyRemaining returns how much can still be spent in the current monthly window.
func (r SpendingRecord) MonthlyRemaining() decimal.Decimal {
	return remaining(r.MonthlyLimit, r.MonthlySpent)
}

func remaining(limit, spent decimal.Decimal) decimal.Decimal {
	rem := limit.Sub(spent)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// SpendingInfo is the read-only view returned to callers.
type SpendingInfo struct {
	DailyLimit   decimal.Decimal `json:"dailyLimit"`
	DailySpent   decimal.Decimal `json:"dailySpent"`
	MonthlyLimit decimal.Decimal `json:"monthlyLimit"`
	MonthlySpent decimal.Decimal `json:"monthlySpent"`
	IsFrozen     bool            `json:"isFrozen"`
}

// Info converts the record into its public view.
func (r SpendingRecord) Info() SpendingInfo {
	return SpendingInfo{
		DailyLimit:   r.DailyLimit,
		DailySpent:   r.DailySpent,
		MonthlyLimit: r.MonthlyLimit,
		MonthlySpent: r.MonthlySpent,
		IsFrozen:     r.IsFrozen,
	}
}
