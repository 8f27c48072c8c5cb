package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"WalletGuard/internal/model"
)

// snapshot is the on-disk JSON form of a MemoryStore.
type snapshot struct {
	Records      map[string]model.SpendingRecord     `json:"records"`
	Settings     map[string]model.WalletSettings     `json:"settings"`
	Contacts     map[string]map[string]model.Contact `json:"contacts"`
	Transactions map[string][]model.Transaction      `json:"transactions"`
	SavedAt      time.Time                           `json:"saved_at"`
}

// LoadSnapshot reads a snapshot file into the store. A missing file leaves the
// store empty.
func (s *MemoryStore) LoadSnapshot(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range snap.Records {
		s.records[k] = v
	}
	for k, v := range snap.Settings {
		s.settings[k] = v
	}
	for k, v := range snap.Contacts {
		s.contacts[k] = v
	}
	for k, v := range snap.Transactions {
		s.txs[k] = v
	}
	return nil
}

// SaveSnapshot writes the whole store to filePath, replacing it atomically.
func (s *MemoryStore) SaveSnapshot(filePath string) error {
	s.mu.RLock()
	snap := snapshot{
		Records:      s.records,
		Settings:     s.settings,
		Contacts:     s.contacts,
		Transactions: s.txs,
		SavedAt:      time.Now(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
