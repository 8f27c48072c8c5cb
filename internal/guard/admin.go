package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
	"WalletGuard/internal/store"
)

// SetDailyLimit replaces the daily limit. If the wallet has already spent more
// than the new limit in the current window, the counter is capped at the limit.
func (g *Guard) SetDailyLimit(ctx context.Context, walletKey string, limit decimal.Decimal) (model.SpendingInfo, error) {
	return g.setLimit(ctx, walletKey, limit, "daily", func(rec *model.SpendingRecord) {
		rec.DailyLimit = limit
		if rec.DailySpent.GreaterThan(limit) {
			rec.DailySpent = limit
		}
	})
}

// SetMonthlyLimit replaces the monthly limit, capping the monthly counter the
// same way SetDailyLimit does.
func (g *Guard) SetMonthlyLimit(ctx context.Context, walletKey string, limit decimal.Decimal) (model.SpendingInfo, error) {
	return g.setLimit(ctx, walletKey, limit, "monthly", func(rec *model.SpendingRecord) {
		rec.MonthlyLimit = limit
		if rec.MonthlySpent.GreaterThan(limit) {
			rec.MonthlySpent = limit
		}
	})
}

func (g *Guard) setLimit(ctx context.Context, walletKey string, limit decimal.Decimal, which string, set func(*model.SpendingRecord)) (model.SpendingInfo, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	if err := requirePositive(limit); err != nil {
		return model.SpendingInfo{}, err
	}
	rec, err := g.mutate(ctx, walletKey, set)
	if err != nil {
		return model.SpendingInfo{}, fmt.Errorf("set %s limit: %w", which, err)
	}
	g.logger.Info("spending limit changed",
		zap.String("wallet", walletKey), zap.String("window", which), zap.String("limit", limit.String()))
	g.emit(ctx, model.EventLimitChanged, walletKey, limit, &rec, func(e *model.Event) { e.Note = which })
	return rec.Info(), nil
}

// Freeze blocks all spending from the wallet until it is unfrozen.
func (g *Guard) Freeze(ctx context.Context, walletKey string) (model.SpendingInfo, error) {
	return g.setFrozen(ctx, walletKey, true, model.EventFrozen)
}

// Unfreeze lifts a freeze.
func (g *Guard) Unfreeze(ctx context.Context, walletKey string) (model.SpendingInfo, error) {
	return g.setFrozen(ctx, walletKey, false, model.EventUnfrozen)
}

// EmergencyFreeze lets the wallet's designated emergency contact freeze it.
// The emergency contact cannot unfreeze.
func (g *Guard) EmergencyFreeze(ctx context.Context, walletKey, emergencyContact string) (model.SpendingInfo, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	emergencyContact = strings.TrimSpace(emergencyContact)
	if emergencyContact == "" {
		return model.SpendingInfo{}, ErrEmergencyContactRequired
	}
	settings, err := g.Settings(ctx, walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	if settings.EmergencyContact != emergencyContact {
		g.logger.Warn("emergency freeze rejected",
			zap.String("wallet", walletKey), zap.String("contact", emergencyContact))
		return model.SpendingInfo{}, ErrUnauthorizedEmergencyContact
	}
	return g.setFrozen(ctx, walletKey, true, model.EventEmergencyFrozen)
}

func (g *Guard) setFrozen(ctx context.Context, walletKey string, frozen bool, kind model.EventKind) (model.SpendingInfo, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	rec, err := g.mutate(ctx, walletKey, func(rec *model.SpendingRecord) { rec.IsFrozen = frozen })
	if err != nil {
		return model.SpendingInfo{}, fmt.Errorf("set frozen=%v: %w", frozen, err)
	}
	g.logger.Info("wallet freeze state changed", zap.String("wallet", walletKey), zap.Bool("frozen", frozen))
	g.emit(ctx, kind, walletKey, decimal.Zero, &rec, nil)
	return rec.Info(), nil
}

// ResetSpending zeroes both counters and restarts both windows now.
func (g *Guard) ResetSpending(ctx context.Context, walletKey string) (model.SpendingInfo, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	now := g.clock()
	rec, err := g.store.UpdateRecord(ctx, walletKey, now, func(rec *model.SpendingRecord) error {
		g.policy.Reset(rec, now)
		return nil
	})
	if err != nil {
		return model.SpendingInfo{}, fmt.Errorf("reset spending: %w", err)
	}
	g.emit(ctx, model.EventCountersReset, walletKey, decimal.Zero, &rec, nil)
	return rec.Info(), nil
}

// SpendingInfo returns the wallet's record as of now without persisting anything.
func (g *Guard) SpendingInfo(ctx context.Context, walletKey string) (model.SpendingInfo, error) {
	rec, err := g.currentRecord(ctx, walletKey)
	if err != nil {
		return model.SpendingInfo{}, err
	}
	return rec.Info(), nil
}

// Analytics summarises spend and logged transactions as of now.
func (g *Guard) Analytics(ctx context.Context, walletKey string) (model.Analytics, error) {
	rec, err := g.currentRecord(ctx, walletKey)
	if err != nil {
		return model.Analytics{}, err
	}
	n, err := g.store.CountTransactions(ctx, rec.WalletKey)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	return model.Analytics{
		DailySpent:        rec.DailySpent,
		MonthlySpent:      rec.MonthlySpent,
		TotalTransactions: n,
		DailyLimit:        rec.DailyLimit,
		MonthlyLimit:      rec.MonthlyLimit,
	}, nil
}

// SweepWindows applies the window policy to every stored wallet and persists
// the ones that rolled over. It returns how many were reset.
func (g *Guard) SweepWindows(ctx context.Context) (int, error) {
	wallets, err := g.store.Wallets(ctx)
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, w := range wallets {
		now := g.clock()
		var rolled bool
		_, err := g.store.UpdateRecord(ctx, w, now, func(rec *model.SpendingRecord) error {
			rolled = g.policy.Apply(rec, now)
			if !rolled {
				return store.ErrNoChange
			}
			return nil
		})
		if err != nil {
			return reset, fmt.Errorf("sweep %s: %w", w, err)
		}
		if rolled {
			reset++
		}
	}
	return reset, nil
}

// currentRecord loads a record (or the default one) and applies the window
// policy to the copy.
func (g *Guard) currentRecord(ctx context.Context, walletKey string) (model.SpendingRecord, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.SpendingRecord{}, err
	}
	now := g.clock()
	rec, found, err := g.store.GetRecord(ctx, walletKey)
	if err != nil {
		return model.SpendingRecord{}, err
	}
	if !found {
		rec = model.NewSpendingRecord(walletKey, now)
	}
	g.policy.Apply(&rec, now)
	return rec, nil
}

// mutate applies the window policy and then fn inside one atomic update.
func (g *Guard) mutate(ctx context.Context, walletKey string, fn func(*model.SpendingRecord)) (model.SpendingRecord, error) {
	now := g.clock()
	return g.store.UpdateRecord(ctx, walletKey, now, func(rec *model.SpendingRecord) error {
		g.policy.Apply(rec, now)
		fn(rec)
		return nil
	})
}
