package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
	"WalletGuard/internal/store"
)

// ValidateRequest is a proposed outgoing transfer.
type ValidateRequest struct {
	WalletKey string
	Amount    decimal.Decimal
	Recipient string
	Memo      string
}

// Reservation identifies the allowance consumed by an approved validation so
// it can be released if the transfer never reaches the ledger.
type Reservation = model.Reservation

// Decision is the outcome of a validation. Policy denials are reported here,
// never as errors.
type Decision struct {
	IsValid          bool         `json:"isValid"`
	Errors           []string     `json:"errors"`
	TrustedRecipient bool         `json:"trustedRecipient"`
	Reservation      *Reservation `json:"reservation,omitempty"`
}

// Message is the one-line summary shown alongside the error list.
func (d Decision) Message() string {
	if d.IsValid {
		return "Transaction validation passed"
	}
	return "Transaction validation failed"
}

// Validate decides whether a transfer may proceed. Every rule is evaluated and
// every violation is reported. On approval both counters are incremented in the
// same atomic update; a denial leaves them untouched, though a window rollover
// discovered along the way is still persisted.
func (g *Guard) Validate(ctx context.Context, req ValidateRequest) (Decision, error) {
	walletKey, err := requireWallet(req.WalletKey)
	if err != nil {
		return Decision{}, err
	}
	if strings.TrimSpace(req.Recipient) == "" {
		return Decision{}, ErrRecipientRequired
	}
	if err := requirePositive(req.Amount); err != nil {
		return Decision{}, err
	}

	settings, err := g.Settings(ctx, walletKey)
	if err != nil {
		return Decision{}, err
	}
	trusted, err := g.isTrustedRecipient(ctx, walletKey, req.Recipient)
	if err != nil {
		return Decision{}, err
	}

	now := g.clock()
	var decision Decision
	rec, err := g.store.UpdateRecord(ctx, walletKey, now, func(rec *model.SpendingRecord) error {
		// The store may run this more than once; only the last run counts.
		decision = Decision{TrustedRecipient: trusted}
		g.policy.Apply(rec, now)
		decision.Errors = checkTransfer(rec, settings, req.Amount, req.Memo)
		decision.IsValid = len(decision.Errors) == 0
		if decision.IsValid {
			rec.DailySpent = rec.DailySpent.Add(req.Amount)
			rec.MonthlySpent = rec.MonthlySpent.Add(req.Amount)
			res := Reservation{
				ID:         uuid.New().String(),
				WalletKey:  walletKey,
				Amount:     req.Amount,
				DayStart:   rec.DayStart,
				MonthStart: rec.MonthStart,
			}
			rec.AddPending(res)
			decision.Reservation = &res
		}
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("validate %s: %w", walletKey, err)
	}

	if decision.IsValid {
		g.emit(ctx, model.EventValidated, walletKey, req.Amount, &rec, func(e *model.Event) {
			e.Recipient = req.Recipient
		})
	} else {
		g.logger.Info("transaction denied",
			zap.String("wallet", walletKey),
			zap.String("amount", req.Amount.String()),
			zap.Strings("reasons", decision.Errors))
		g.emit(ctx, model.EventDenied, walletKey, req.Amount, &rec, func(e *model.Event) {
			e.Recipient = req.Recipient
			e.Reasons = decision.Errors
		})
	}
	return decision, nil
}

// checkTransfer lists every rule the transfer violates.
func checkTransfer(rec *model.SpendingRecord, settings model.WalletSettings, amount decimal.Decimal, memo string) []string {
	errs := []string{}
	if rec.IsFrozen {
		errs = append(errs, "Wallet is frozen")
	}
	if amount.GreaterThan(settings.MaxTxAmount) {
		errs = append(errs, fmt.Sprintf("Amount exceeds max transaction limit of %s XLM", settings.MaxTxAmount))
	}
	if settings.RequireMemo && strings.TrimSpace(memo) == "" {
		errs = append(errs, "Memo is required for this wallet")
	}
	if rec.DailySpent.Add(amount).GreaterThan(rec.DailyLimit) {
		errs = append(errs, fmt.Sprintf("Amount %s XLM exceeds daily spending limit. Daily spent: %s/%s XLM",
			amount, rec.DailySpent, rec.DailyLimit))
	}
	if rec.MonthlySpent.Add(amount).GreaterThan(rec.MonthlyLimit) {
		errs = append(errs, fmt.Sprintf("Amount %s XLM exceeds monthly spending limit. Monthly spent: %s/%s XLM",
			amount, rec.MonthlySpent, rec.MonthlyLimit))
	}
	return errs
}

func (g *Guard) isTrustedRecipient(ctx context.Context, walletKey, recipient string) (bool, error) {
	contacts, err := g.store.ListContacts(ctx, walletKey)
	if err != nil {
		return false, fmt.Errorf("load contacts: %w", err)
	}
	for _, c := range contacts {
		if c.IsTrusted && c.Address == recipient {
			return true, nil
		}
	}
	return false, nil
}

// CanSpendResult is the outcome of the quick spend check.
type CanSpendResult struct {
	CanSpend bool   `json:"canSpend"`
	Message  string `json:"message"`
}

// CanSpend is the lightweight check-and-consume used by callers that only need
// a yes/no: it checks the freeze flag and the daily and monthly limits (not the
// per-transaction maximum) and consumes the allowance when it answers yes.
func (g *Guard) CanSpend(ctx context.Context, walletKey string, amount decimal.Decimal) (CanSpendResult, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return CanSpendResult{}, err
	}
	if err := requirePositive(amount); err != nil {
		return CanSpendResult{}, err
	}

	now := g.clock()
	var ok bool
	rec, err := g.store.UpdateRecord(ctx, walletKey, now, func(rec *model.SpendingRecord) error {
		g.policy.Apply(rec, now)
		ok = !rec.IsFrozen &&
			!rec.DailySpent.Add(amount).GreaterThan(rec.DailyLimit) &&
			!rec.MonthlySpent.Add(amount).GreaterThan(rec.MonthlyLimit)
		if ok {
			rec.DailySpent = rec.DailySpent.Add(amount)
			rec.MonthlySpent = rec.MonthlySpent.Add(amount)
		}
		return nil
	})
	if err != nil {
		return CanSpendResult{}, fmt.Errorf("can spend %s: %w", walletKey, err)
	}

	if !ok {
		g.emit(ctx, model.EventDenied, walletKey, amount, &rec, func(e *model.Event) {
			e.Reasons = []string{"Transaction exceeds limits or wallet is frozen"}
		})
		return CanSpendResult{CanSpend: false, Message: "Transaction exceeds limits or wallet is frozen"}, nil
	}
	g.emit(ctx, model.EventValidated, walletKey, amount, &rec, nil)
	return CanSpendResult{CanSpend: true, Message: "Transaction allowed"}, nil
}

// Release gives back the allowance taken by the approved validation with
// r.ID, whose transfer failed to submit. Only the ID and wallet are read from
// r; the amount and windows come from the stored reservation. A reservation is
// released at most once: released reports false when it is unknown, already
// released, settled by LogTransaction, or expired with its windows. Each
// counter is only decremented if its window is still the one the reservation
// was taken in, and never below zero.
func (g *Guard) Release(ctx context.Context, r Reservation) (info model.SpendingInfo, released bool, err error) {
	walletKey, err := requireWallet(r.WalletKey)
	if err != nil {
		return model.SpendingInfo{}, false, err
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return model.SpendingInfo{}, false, ErrReservationIDRequired
	}

	now := g.clock()
	var taken Reservation
	rec, err := g.store.UpdateRecord(ctx, walletKey, now, func(rec *model.SpendingRecord) error {
		released = false
		g.policy.Apply(rec, now)
		if taken, released = rec.TakePending(id); !released {
			return nil
		}
		if rec.DayStart.Equal(taken.DayStart) {
			rec.DailySpent = subFloor(rec.DailySpent, taken.Amount)
		}
		if rec.MonthStart.Equal(taken.MonthStart) {
			rec.MonthlySpent = subFloor(rec.MonthlySpent, taken.Amount)
		}
		return nil
	})
	if err != nil {
		return model.SpendingInfo{}, false, fmt.Errorf("release %s: %w", walletKey, err)
	}
	if !released {
		g.logger.Info("reservation not pending, nothing released",
			zap.String("wallet", walletKey), zap.String("reservation", id))
		return rec.Info(), false, nil
	}
	g.emit(ctx, model.EventReleased, walletKey, taken.Amount, &rec, func(e *model.Event) { e.Note = id })
	return rec.Info(), true, nil
}

// settle drops a reservation whose transfer reached the ledger so it can no
// longer be released.
func (g *Guard) settle(ctx context.Context, walletKey, id string) error {
	_, err := g.store.UpdateRecord(ctx, walletKey, g.clock(), func(rec *model.SpendingRecord) error {
		if _, ok := rec.TakePending(id); !ok {
			return store.ErrNoChange
		}
		return nil
	})
	return err
}

func subFloor(a, b decimal.Decimal) decimal.Decimal {
	d := a.Sub(b)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
