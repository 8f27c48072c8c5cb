package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxTypeSend is the only transaction type the guard records.
const TxTypeSend = "send"

// HistoryLimit is how many transactions the history view returns.
const HistoryLimit = 10

// Transaction is a completed transfer logged after network confirmation.
type Transaction struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Memo      string          `json:"memo"`
	Hash      string          `json:"hash,omitempty"`
}

// Analytics summarises a wallet's current spending.
type Analytics struct {
	DailySpent        decimal.Decimal `json:"dailySpent"`
	MonthlySpent      decimal.Decimal `json:"monthlySpent"`
	TotalTransactions int             `json:"totalTransactions"`
	DailyLimit        decimal.Decimal `json:"dailyLimit"`
	MonthlyLimit      decimal.Decimal `json:"monthlyLimit"`
}
