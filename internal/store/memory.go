package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"WalletGuard/internal/model"
)

// MemoryStore keeps all state in process. Updates to one wallet are serialized
// by a per-wallet mutex; different wallets proceed in parallel.
type MemoryStore struct {
	mu       sync.RWMutex
	locks    map[string]*sync.Mutex
	records  map[string]model.SpendingRecord
	settings map[string]model.WalletSettings
	contacts map[string]map[string]model.Contact
	txs      map[string][]model.Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    make(map[string]*sync.Mutex),
		records:  make(map[string]model.SpendingRecord),
		settings: make(map[string]model.WalletSettings),
		contacts: make(map[string]map[string]model.Contact),
		txs:      make(map[string][]model.Transaction),
	}
}

func (s *MemoryStore) walletLock(walletKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[walletKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[walletKey] = l
	}
	return l
}

func (s *MemoryStore) GetRecord(_ context.Context, walletKey string) (model.SpendingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[walletKey]
	return rec, ok, nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, walletKey string, now time.Time, fn UpdateFunc) (model.SpendingRecord, error) {
	l := s.walletLock(walletKey)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	rec, ok := s.records[walletKey]
	s.mu.RUnlock()
	if !ok {
		rec = model.NewSpendingRecord(walletKey, now)
	}

	persist, err := apply(&rec, now, fn)
	if err != nil {
		return model.SpendingRecord{}, err
	}
	if persist {
		s.mu.Lock()
		s.records[walletKey] = rec
		s.mu.Unlock()
	}
	return rec, nil
}

func (s *MemoryStore) Wallets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) GetSettings(_ context.Context, walletKey string) (model.WalletSettings, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[walletKey]
	return st, ok, nil
}

func (s *MemoryStore) PutSettings(_ context.Context, walletKey string, settings model.WalletSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[walletKey] = settings
	return nil
}

func (s *MemoryStore) GetContact(_ context.Context, walletKey, name string) (model.Contact, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contacts[walletKey][model.ContactKey(name)]
	return c, ok, nil
}

func (s *MemoryStore) ListContacts(_ context.Context, walletKey string) ([]model.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book := s.contacts[walletKey]
	out := make([]model.Contact, 0, len(book))
	for _, c := range book {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return model.ContactKey(out[i].Name) < model.ContactKey(out[j].Name) })
	return out, nil
}

func (s *MemoryStore) PutContact(_ context.Context, walletKey string, contact model.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.contacts[walletKey]
	if !ok {
		book = make(map[string]model.Contact)
		s.contacts[walletKey] = book
	}
	book[model.ContactKey(contact.Name)] = contact
	return nil
}

func (s *MemoryStore) DeleteContact(_ context.Context, walletKey, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts[walletKey], model.ContactKey(name))
	return nil
}

func (s *MemoryStore) AppendTransaction(_ context.Context, walletKey string, tx model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs[walletKey] = append(s.txs[walletKey], tx)
	return nil
}

func (s *MemoryStore) RecentTransactions(_ context.Context, walletKey string, limit int) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.txs[walletKey]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]model.Transaction, len(all))
	copy(out, all)
	return out, nil
}

func (s *MemoryStore) CountTransactions(_ context.Context, walletKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs[walletKey]), nil
}

func (s *MemoryStore) Close() error { return nil }
