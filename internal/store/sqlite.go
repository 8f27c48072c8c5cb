package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"WalletGuard/internal/model"
)

// SQLStore persists guard state in SQLite. The pool is limited to a single
// connection, so UpdateRecord transactions run one at a time.
type SQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the database at dbPath and runs migrations.
func OpenSQLite(dbPath string, logger *zap.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := NewSQLStore(db, logger)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

// NewSQLStore wraps an existing connection. The schema must already exist.
func NewSQLStore(db *sql.DB, logger *zap.Logger) *SQLStore {
	return &SQLStore{db: db, logger: logger}
}

func (s *SQLStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS spending_records (
			wallet_key    TEXT PRIMARY KEY,
			daily_limit   TEXT NOT NULL,
			monthly_limit TEXT NOT NULL,
			daily_spent   TEXT NOT NULL,
			monthly_spent TEXT NOT NULL,
			day_start     INTEGER NOT NULL,
			month_start   INTEGER NOT NULL,
			is_frozen     INTEGER NOT NULL DEFAULT 0,
			updated_at    INTEGER NOT NULL,
			pending       TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS wallet_settings (
			wallet_key           TEXT PRIMARY KEY,
			auto_approve_trusted INTEGER NOT NULL DEFAULT 0,
			require_memo         INTEGER NOT NULL DEFAULT 0,
			max_tx_amount        TEXT NOT NULL,
			emergency_contact    TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			wallet_key TEXT NOT NULL,
			name_key   TEXT NOT NULL,
			name       TEXT NOT NULL,
			address    TEXT NOT NULL,
			is_trusted INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (wallet_key, name_key)
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			wallet_key TEXT NOT NULL,
			recipient  TEXT NOT NULL,
			amount     TEXT NOT NULL,
			tx_type    TEXT NOT NULL,
			memo       TEXT,
			tx_hash    TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_wallet ON transactions(wallet_key, seq)`,
	}

	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return fmt.Errorf("exec %q: %w", st[:40], err)
		}
	}
	return nil
}

const selectRecord = `SELECT wallet_key, daily_limit, monthly_limit, daily_spent, monthly_spent,
	day_start, month_start, is_frozen, updated_at, pending
	FROM spending_records WHERE wallet_key = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (model.SpendingRecord, error) {
	var (
		rec                           model.SpendingRecord
		dayStart, monthStart, updated int64
		pending                       string
	)
	err := row.Scan(&rec.WalletKey, &rec.DailyLimit, &rec.MonthlyLimit, &rec.DailySpent, &rec.MonthlySpent,
		&dayStart, &monthStart, &rec.IsFrozen, &updated, &pending)
	if err != nil {
		return model.SpendingRecord{}, err
	}
	if pending != "" {
		if err := json.Unmarshal([]byte(pending), &rec.Pending); err != nil {
			return model.SpendingRecord{}, fmt.Errorf("decode pending reservations: %w", err)
		}
	}
	rec.DayStart = time.UnixMilli(dayStart).UTC()
	rec.MonthStart = time.UnixMilli(monthStart).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return rec, nil
}

func (s *SQLStore) GetRecord(ctx context.Context, walletKey string) (model.SpendingRecord, bool, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectRecord, walletKey))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SpendingRecord{}, false, nil
	}
	if err != nil {
		return model.SpendingRecord{}, false, fmt.Errorf("get record: %w", err)
	}
	return rec, true, nil
}

func (s *SQLStore) UpdateRecord(ctx context.Context, walletKey string, now time.Time, fn UpdateFunc) (model.SpendingRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SpendingRecord{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRowContext(ctx, selectRecord, walletKey))
	if errors.Is(err, sql.ErrNoRows) {
		rec = model.NewSpendingRecord(walletKey, now)
	} else if err != nil {
		return model.SpendingRecord{}, fmt.Errorf("load record: %w", err)
	}

	persist, err := apply(&rec, now, fn)
	if err != nil {
		return model.SpendingRecord{}, err
	}
	if !persist {
		return rec, nil
	}

	var pending []byte
	if len(rec.Pending) > 0 {
		if pending, err = json.Marshal(rec.Pending); err != nil {
			return model.SpendingRecord{}, fmt.Errorf("encode pending reservations: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO spending_records
		(wallet_key, daily_limit, monthly_limit, daily_spent, monthly_spent, day_start, month_start, is_frozen, updated_at, pending)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (wallet_key) DO UPDATE SET
			daily_limit = excluded.daily_limit,
			monthly_limit = excluded.monthly_limit,
			daily_spent = excluded.daily_spent,
			monthly_spent = excluded.monthly_spent,
			day_start = excluded.day_start,
			month_start = excluded.month_start,
			is_frozen = excluded.is_frozen,
			updated_at = excluded.updated_at,
			pending = excluded.pending`,
		walletKey, rec.DailyLimit.String(), rec.MonthlyLimit.String(),
		rec.DailySpent.String(), rec.MonthlySpent.String(),
		rec.DayStart.UnixMilli(), rec.MonthStart.UnixMilli(), rec.IsFrozen, rec.UpdatedAt.UnixMilli(),
		string(pending),
	)
	if err != nil {
		return model.SpendingRecord{}, fmt.Errorf("save record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.SpendingRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) Wallets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT wallet_key FROM spending_records ORDER BY wallet_key`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLStore) GetSettings(ctx context.Context, walletKey string) (model.WalletSettings, bool, error) {
	var st model.WalletSettings
	var maxTx string
	err := s.db.QueryRowContext(ctx, `SELECT auto_approve_trusted, require_memo, max_tx_amount, emergency_contact
		FROM wallet_settings WHERE wallet_key = ?`, walletKey).
		Scan(&st.AutoApproveTrusted, &st.RequireMemo, &maxTx, &st.EmergencyContact)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WalletSettings{}, false, nil
	}
	if err != nil {
		return model.WalletSettings{}, false, fmt.Errorf("get settings: %w", err)
	}
	if st.MaxTxAmount, err = decimal.NewFromString(maxTx); err != nil {
		return model.WalletSettings{}, false, fmt.Errorf("parse max_tx_amount %q: %w", maxTx, err)
	}
	return st, true, nil
}

func (s *SQLStore) PutSettings(ctx context.Context, walletKey string, st model.WalletSettings) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO wallet_settings
		(wallet_key, auto_approve_trusted, require_memo, max_tx_amount, emergency_contact)
		VALUES (?,?,?,?,?)
		ON CONFLICT (wallet_key) DO UPDATE SET
			auto_approve_trusted = excluded.auto_approve_trusted,
			require_memo = excluded.require_memo,
			max_tx_amount = excluded.max_tx_amount,
			emergency_contact = excluded.emergency_contact`,
		walletKey, st.AutoApproveTrusted, st.RequireMemo, st.MaxTxAmount.String(), st.EmergencyContact,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *SQLStore) GetContact(ctx context.Context, walletKey, name string) (model.Contact, bool, error) {
	var c model.Contact
	err := s.db.QueryRowContext(ctx, `SELECT name, address, is_trusted FROM contacts
		WHERE wallet_key = ? AND name_key = ?`, walletKey, model.ContactKey(name)).
		Scan(&c.Name, &c.Address, &c.IsTrusted)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, false, nil
	}
	if err != nil {
		return model.Contact{}, false, fmt.Errorf("get contact: %w", err)
	}
	return c, true, nil
}

func (s *SQLStore) ListContacts(ctx context.Context, walletKey string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, address, is_trusted FROM contacts
		WHERE wallet_key = ? ORDER BY name_key`, walletKey)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()
	var out []model.Contact
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.Name, &c.Address, &c.IsTrusted); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutContact(ctx context.Context, walletKey string, c model.Contact) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO contacts (wallet_key, name_key, name, address, is_trusted)
		VALUES (?,?,?,?,?)
		ON CONFLICT (wallet_key, name_key) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			is_trusted = excluded.is_trusted`,
		walletKey, model.ContactKey(c.Name), c.Name, c.Address, c.IsTrusted,
	)
	if err != nil {
		return fmt.Errorf("save contact: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteContact(ctx context.Context, walletKey, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE wallet_key = ? AND name_key = ?`,
		walletKey, model.ContactKey(name))
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return nil
}

func (s *SQLStore) AppendTransaction(ctx context.Context, walletKey string, t model.Transaction) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO transactions
		(id, wallet_key, recipient, amount, tx_type, memo, tx_hash, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, walletKey, t.To, t.Amount.String(), t.Type, t.Memo, t.Hash, t.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *SQLStore) RecentTransactions(ctx context.Context, walletKey string, limit int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, recipient, amount, tx_type, memo, tx_hash, created_at
		FROM transactions WHERE wallet_key = ? ORDER BY seq DESC LIMIT ?`, walletKey, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var (
			t          model.Transaction
			amount     string
			memo, hash sql.NullString
			created    int64
		)
		if err := rows.Scan(&t.ID, &t.To, &amount, &t.Type, &memo, &hash, &created); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		t.From = walletKey
		t.Memo = memo.String
		t.Hash = hash.String
		t.Timestamp = time.UnixMilli(created).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLStore) CountTransactions(ctx context.Context, walletKey string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE wallet_key = ?`, walletKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}
