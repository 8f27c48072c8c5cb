// Package payment runs the send flow: validate, submit to the ledger, then
// either log the transfer or give the allowance back.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/ledger"
	"WalletGuard/internal/model"
)

// ErrSignedTxRequired is returned before validation when the envelope is missing,
// so no allowance is consumed for a request that can never be submitted.
var ErrSignedTxRequired = errors.New("Signed transaction is required")

// ErrSubmitFailed wraps every ledger submission failure.
var ErrSubmitFailed = errors.New("Transaction submission failed")

// Request is a transfer the wallet owner has already signed.
type Request struct {
	WalletKey string
	To        string
	Amount    decimal.Decimal
	Memo      string
	SignedTx  string
}

// Result is the outcome of Send. Hash and Transaction are set only when the
// network accepted the transfer.
type Result struct {
	Decision    guard.Decision     `json:"decision"`
	Hash        string             `json:"hash,omitempty"`
	Transaction *model.Transaction `json:"transaction,omitempty"`
}

// Sender wires the guard to the ledger.
type Sender struct {
	guard  *guard.Guard
	ledger ledger.Ledger
	logger *zap.Logger
}

// NewSender creates a Sender.
func NewSender(g *guard.Guard, l ledger.Ledger, logger *zap.Logger) *Sender {
	return &Sender{guard: g, ledger: l, logger: logger}
}

// Send validates the transfer and submits it. A denial is returned in the
// result with a nil error. If submission fails the reserved allowance is
// released and the submit error is returned.
//
// SignedTx is submitted as is. Send never decodes the envelope, so nothing
// checks that it pays req.Amount to req.To; the caller that builds and signs
// the envelope is trusted to describe it truthfully.
func (s *Sender) Send(ctx context.Context, req Request) (Result, error) {
	if req.SignedTx == "" {
		return Result{}, ErrSignedTxRequired
	}
	decision, err := s.guard.Validate(ctx, guard.ValidateRequest{
		WalletKey: req.WalletKey,
		Amount:    req.Amount,
		Recipient: req.To,
		Memo:      req.Memo,
	})
	if err != nil {
		return Result{}, err
	}
	res := Result{Decision: decision}
	if !decision.IsValid {
		return res, nil
	}

	hash, err := s.ledger.Submit(ctx, req.SignedTx)
	if err != nil {
		s.logger.Warn("ledger submit failed, releasing allowance",
			zap.String("wallet", req.WalletKey),
			zap.String("ledger", s.ledger.Name()),
			zap.Error(err))
		if _, _, relErr := s.guard.Release(ctx, *decision.Reservation); relErr != nil {
			s.logger.Error("release allowance failed",
				zap.String("wallet", req.WalletKey), zap.Error(relErr))
			return res, fmt.Errorf("%w: %w (release failed: %v)", ErrSubmitFailed, err, relErr)
		}
		return res, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	res.Hash = hash

	tx, err := s.guard.LogTransaction(ctx, req.WalletKey, guard.LogRequest{
		To:            req.To,
		Amount:        req.Amount,
		Memo:          req.Memo,
		Hash:          hash,
		ReservationID: decision.Reservation.ID,
	})
	if err != nil {
		// The transfer is on the ledger; the allowance stays consumed.
		s.logger.Error("log confirmed transfer failed",
			zap.String("wallet", req.WalletKey), zap.String("hash", hash), zap.Error(err))
		return res, nil
	}
	res.Transaction = &tx
	s.logger.Info("transfer submitted",
		zap.String("wallet", req.WalletKey), zap.String("to", req.To),
		zap.String("amount", req.Amount.String()), zap.String("hash", hash))
	return res, nil
}

// Account returns the wallet's ledger balances.
func (s *Sender) Account(ctx context.Context, walletKey string) ([]ledger.Balance, error) {
	if walletKey == "" {
		return nil, guard.ErrWalletKeyRequired
	}
	return s.ledger.LoadAccount(ctx, walletKey)
}
