package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// WalletSettings holds per-wallet options read by the validation engine.
type WalletSettings struct {
	AutoApproveTrusted bool            `json:"autoApproveTrusted"`
	RequireMemo        bool            `json:"requireMemo"`
	MaxTxAmount        decimal.Decimal `json:"maxTxAmount"`
	EmergencyContact   string          `json:"emergencyContact"`
}

// DefaultSettings returns the settings a wallet has before the owner changes them.
func DefaultSettings(walletKey string) WalletSettings {
	return WalletSettings{
		MaxTxAmount:      DefaultMaxTxAmount,
		EmergencyContact: walletKey,
	}
}

// Normalize fills unset fields with their defaults.
func (s WalletSettings) Normalize(walletKey string) WalletSettings {
	if !s.MaxTxAmount.IsPositive() {
		s.MaxTxAmount = DefaultMaxTxAmount
	}
	s.EmergencyContact = strings.TrimSpace(s.EmergencyContact)
	if s.EmergencyContact == "" {
		s.EmergencyContact = walletKey
	}
	return s
}

// Contact is a named recipient in a wallet's address book.
type Contact struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	IsTrusted bool   `json:"isTrusted"`
}

// ContactKey is the case-insensitive lookup key for a contact name.
func ContactKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
