// Package ledger talks to the Stellar network through a Horizon server.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned when Horizon has no account for the key.
	ErrAccountNotFound = errors.New("account not found")
	// ErrSignedTxRequired is returned when Submit is called with an empty envelope.
	ErrSignedTxRequired = errors.New("signed transaction is required")
)

// Balance is one line of an account's balances.
type Balance struct {
	AssetType   string          `json:"assetType"`
	AssetCode   string          `json:"assetCode,omitempty"`
	AssetIssuer string          `json:"assetIssuer,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
}

// IsNative reports whether the balance is in XLM.
func (b Balance) IsNative() bool { return b.AssetType == "native" }

// Ledger is the external ledger service.
type Ledger interface {
	LoadAccount(ctx context.Context, accountID string) ([]Balance, error)
	Submit(ctx context.Context, signedTx string) (string, error)
	Name() string
}

// SubmitError is a transaction rejected by the network.
type SubmitError struct {
	Status     int
	Title      string
	ResultCode string
	OpCodes    []string
}

func (e *SubmitError) Error() string {
	msg := "submit transaction: " + e.Title
	if e.ResultCode != "" {
		msg += " (" + e.ResultCode + ")"
	}
	return msg
}
