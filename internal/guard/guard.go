// Package guard is the spending-limit engine: it validates outgoing transfers
// against a wallet's limits and settings, and carries out the owner's
// administrative actions on the same state.
package guard

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
	"WalletGuard/internal/store"
	"WalletGuard/internal/window"
)

// Auditor receives every event the guard emits. Implementations handle their
// own failures; an audit sink never changes a decision.
type Auditor interface {
	Audit(ctx context.Context, evt model.Event)
}

// Auditors fans an event out to several sinks.
type Auditors []Auditor

func (a Auditors) Audit(ctx context.Context, evt model.Event) {
	for _, sink := range a {
		sink.Audit(ctx, evt)
	}
}

type nopAuditor struct{}

func (nopAuditor) Audit(context.Context, model.Event) {}

// Guard owns all access to the spending records, settings and contacts.
type Guard struct {
	store  store.Store
	policy window.Policy
	audit  Auditor
	logger *zap.Logger
	now    func() time.Time
}

// Option customises a Guard.
type Option func(*Guard)

// WithPolicy sets the rolling window lengths.
func WithPolicy(p window.Policy) Option {
	return func(g *Guard) { g.policy = p }
}

// WithAuditor sets the event sink.
func WithAuditor(a Auditor) Option {
	return func(g *Guard) { g.audit = a }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// New creates a Guard over s.
func New(s store.Store, logger *zap.Logger, opts ...Option) *Guard {
	g := &Guard{
		store:  s,
		policy: window.Default,
		audit:  nopAuditor{},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store exposes the underlying repository for maintenance jobs.
func (g *Guard) Store() store.Store { return g.store }

// Now returns the guard's current time.
func (g *Guard) Now() time.Time { return g.clock() }

// Policy returns the window policy in force.
func (g *Guard) Policy() window.Policy { return g.policy }

func (g *Guard) emit(ctx context.Context, kind model.EventKind, walletKey string, amount decimal.Decimal, rec *model.SpendingRecord, mutate func(*model.Event)) {
	evt := model.Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		WalletKey: walletKey,
		Amount:    amount,
		Timestamp: g.clock(),
	}
	if rec != nil {
		info := rec.Info()
		evt.Record = &info
	}
	if mutate != nil {
		mutate(&evt)
	}
	g.audit.Audit(ctx, evt)
}

// clock returns the current time at the millisecond resolution every store
// backend can represent.
func (g *Guard) clock() time.Time {
	return g.now().UTC().Truncate(time.Millisecond)
}

func requireWallet(walletKey string) (string, error) {
	walletKey = strings.TrimSpace(walletKey)
	if walletKey == "" {
		return "", ErrWalletKeyRequired
	}
	return walletKey, nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
