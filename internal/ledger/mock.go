package ledger

import (
	"context"
	"strings"
	"sync"
)

// MockLedger returns controllable fixed data for development and testing.
type MockLedger struct {
	Balances  map[string][]Balance
	Hash      string
	SubmitErr error

	mu        sync.Mutex
	submitted []string
}

func (m *MockLedger) Name() string { return "mock" }

func (m *MockLedger) LoadAccount(_ context.Context, accountID string) ([]Balance, error) {
	b, ok := m.Balances[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return b, nil
}

func (m *MockLedger) Submit(_ context.Context, signedTx string) (string, error) {
	if strings.TrimSpace(signedTx) == "" {
		return "", ErrSignedTxRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitted = append(m.submitted, signedTx)
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	if m.Hash == "" {
		return "mock-hash", nil
	}
	return m.Hash, nil
}

// Submitted returns the envelopes passed to Submit.
func (m *MockLedger) Submitted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}
