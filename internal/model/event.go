package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies what happened to a wallet.
type EventKind string

const (
	EventValidated       EventKind = "VALIDATED"
	EventDenied          EventKind = "DENIED"
	EventReleased        EventKind = "RELEASED"
	EventLimitChanged    EventKind = "LIMIT_CHANGED"
	EventFrozen          EventKind = "FROZEN"
	EventUnfrozen        EventKind = "UNFROZEN"
	EventEmergencyFrozen EventKind = "EMERGENCY_FROZEN"
	EventCountersReset   EventKind = "COUNTERS_RESET"
	EventSettingsChanged EventKind = "SETTINGS_CHANGED"
	EventTxLogged        EventKind = "TX_LOGGED"
)

// Event is an audit entry emitted by the guard.
type Event struct {
	ID        string          `json:"id"`
	Kind      EventKind       `json:"kind"`
	WalletKey string          `json:"walletKey"`
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient,omitempty"`
	Reasons   []string        `json:"reasons,omitempty"`
	Note      string          `json:"note,omitempty"`
	Record    *SpendingInfo   `json:"record,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
