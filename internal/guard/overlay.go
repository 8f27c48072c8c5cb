package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"WalletGuard/internal/model"
)

// Settings returns the wallet's settings, or the defaults if none were saved.
func (g *Guard) Settings(ctx context.Context, walletKey string) (model.WalletSettings, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.WalletSettings{}, err
	}
	st, found, err := g.store.GetSettings(ctx, walletKey)
	if err != nil {
		return model.WalletSettings{}, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		return model.DefaultSettings(walletKey), nil
	}
	return st.Normalize(walletKey), nil
}

// SetSettings replaces the wallet's settings wholesale.
func (g *Guard) SetSettings(ctx context.Context, walletKey string, st model.WalletSettings) (model.WalletSettings, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.WalletSettings{}, err
	}
	st = st.Normalize(walletKey)
	if err := g.store.PutSettings(ctx, walletKey, st); err != nil {
		return model.WalletSettings{}, fmt.Errorf("save settings: %w", err)
	}
	g.emit(ctx, model.EventSettingsChanged, walletKey, st.MaxTxAmount, nil, nil)
	return st, nil
}

// AddContact creates or replaces the contact with the same case-insensitive name.
func (g *Guard) AddContact(ctx context.Context, walletKey, name, address string, trusted bool) (model.Contact, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.Contact{}, err
	}
	name, address = strings.TrimSpace(name), strings.TrimSpace(address)
	if name == "" || address == "" {
		return model.Contact{}, ErrContactAddressRequired
	}
	c := model.Contact{Name: name, Address: address, IsTrusted: trusted}
	if err := g.store.PutContact(ctx, walletKey, c); err != nil {
		return model.Contact{}, fmt.Errorf("save contact: %w", err)
	}
	return c, nil
}

// GetContact looks a contact up by name.
func (g *Guard) GetContact(ctx context.Context, walletKey, name string) (model.Contact, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.Contact{}, err
	}
	if strings.TrimSpace(name) == "" {
		return model.Contact{}, ErrContactNameRequired
	}
	c, found, err := g.store.GetContact(ctx, walletKey, name)
	if err != nil {
		return model.Contact{}, fmt.Errorf("load contact: %w", err)
	}
	if !found {
		return model.Contact{}, &ContactNotFoundError{Name: name}
	}
	return c, nil
}

// Contacts lists the wallet's address book.
func (g *Guard) Contacts(ctx context.Context, walletKey string) ([]model.Contact, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return nil, err
	}
	return g.store.ListContacts(ctx, walletKey)
}

// SetContactTrusted changes an existing contact's trust flag.
func (g *Guard) SetContactTrusted(ctx context.Context, walletKey, name string, trusted bool) (model.Contact, error) {
	c, err := g.GetContact(ctx, walletKey, name)
	if err != nil {
		return model.Contact{}, err
	}
	c.IsTrusted = trusted
	if err := g.store.PutContact(ctx, strings.TrimSpace(walletKey), c); err != nil {
		return model.Contact{}, fmt.Errorf("save contact: %w", err)
	}
	return c, nil
}

// RemoveContact deletes a contact. Removing an unknown name is not an error.
func (g *Guard) RemoveContact(ctx context.Context, walletKey, name string) error {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return ErrContactNameRequired
	}
	return g.store.DeleteContact(ctx, walletKey, name)
}

// LogRequest describes a transfer that the ledger has confirmed.
type LogRequest struct {
	To     string
	Amount decimal.Decimal
	Memo   string
	Hash   string

	// ReservationID, when set, settles the reservation Validate returned for
	// this transfer so it can no longer be released.
	ReservationID string
}

// LogTransaction appends a confirmed transfer to the wallet's history. It does
// not touch the spend counters; those were consumed by Validate.
func (g *Guard) LogTransaction(ctx context.Context, walletKey string, req LogRequest) (model.Transaction, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return model.Transaction{}, err
	}
	if strings.TrimSpace(req.To) == "" || !req.Amount.IsPositive() {
		return model.Transaction{}, ErrRecipientRequired
	}
	if id := strings.TrimSpace(req.ReservationID); id != "" {
		if err := g.settle(ctx, walletKey, id); err != nil {
			return model.Transaction{}, fmt.Errorf("settle reservation %s: %w", id, err)
		}
	}
	tx := model.Transaction{
		ID:        uuid.New().String(),
		From:      walletKey,
		To:        strings.TrimSpace(req.To),
		Amount:    req.Amount,
		Timestamp: g.clock(),
		Type:      model.TxTypeSend,
		Memo:      req.Memo,
		Hash:      req.Hash,
	}
	if err := g.store.AppendTransaction(ctx, walletKey, tx); err != nil {
		return model.Transaction{}, fmt.Errorf("log transaction: %w", err)
	}
	g.emit(ctx, model.EventTxLogged, walletKey, req.Amount, nil, func(e *model.Event) {
		e.Recipient = tx.To
		e.Note = tx.Hash
	})
	return tx, nil
}

// TransactionHistory returns the most recent logged transfers, oldest first.
func (g *Guard) TransactionHistory(ctx context.Context, walletKey string) ([]model.Transaction, error) {
	walletKey, err := requireWallet(walletKey)
	if err != nil {
		return nil, err
	}
	return g.store.RecentTransactions(ctx, walletKey, model.HistoryLimit)
}
