// Package store persists per-wallet guard state. Every backend serializes
// UpdateRecord calls for the same wallet so a read-modify-write of the spend
// counters is atomic.
package store

import (
	"context"
	"errors"
	"time"

	"WalletGuard/internal/model"
)

// ErrNoChange may be returned by an UpdateFunc to skip persisting the record.
var ErrNoChange = errors.New("store: no change")

// UpdateFunc mutates a wallet's record in place. Returning ErrNoChange leaves
// the stored record untouched; any other error aborts the update.
type UpdateFunc func(rec *model.SpendingRecord) error

// Store is the repository behind the guard.
type Store interface {
	// GetRecord returns the stored record. found is false for a wallet that has
	// never been written.
	GetRecord(ctx context.Context, walletKey string) (rec model.SpendingRecord, found bool, err error)

	// UpdateRecord loads the record (or the default record created at now),
	// runs fn, and persists the result atomically with respect to other
	// UpdateRecord calls on the same wallet.
	UpdateRecord(ctx context.Context, walletKey string, now time.Time, fn UpdateFunc) (model.SpendingRecord, error)

	// Wallets lists every wallet that has a stored record.
	Wallets(ctx context.Context) ([]string, error)

	GetSettings(ctx context.Context, walletKey string) (settings model.WalletSettings, found bool, err error)
	PutSettings(ctx context.Context, walletKey string, settings model.WalletSettings) error

	GetContact(ctx context.Context, walletKey, name string) (contact model.Contact, found bool, err error)
	ListContacts(ctx context.Context, walletKey string) ([]model.Contact, error)
	PutContact(ctx context.Context, walletKey string, contact model.Contact) error
	DeleteContact(ctx context.Context, walletKey, name string) error

	AppendTransaction(ctx context.Context, walletKey string, tx model.Transaction) error
	// RecentTransactions returns up to limit of the newest transactions, oldest first.
	RecentTransactions(ctx context.Context, walletKey string, limit int) ([]model.Transaction, error)
	CountTransactions(ctx context.Context, walletKey string) (int, error)

	Close() error
}

// apply runs fn against rec and reports whether the result should be persisted.
func apply(rec *model.SpendingRecord, now time.Time, fn UpdateFunc) (bool, error) {
	if err := fn(rec); err != nil {
		if errors.Is(err, ErrNoChange) {
			return false, nil
		}
		return false, err
	}
	rec.UpdatedAt = now
	return true, nil
}
