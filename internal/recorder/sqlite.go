package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"WalletGuard/internal/model"
)

// SQLiteRecorder persists the audit trail to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id            TEXT PRIMARY KEY,
			timestamp     INTEGER NOT NULL,
			kind          TEXT NOT NULL,
			wallet_key    TEXT NOT NULL,
			amount        TEXT NOT NULL,
			recipient     TEXT,
			reasons       TEXT,
			note          TEXT,
			daily_limit   TEXT,
			daily_spent   TEXT,
			monthly_limit TEXT,
			monthly_spent TEXT,
			is_frozen     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_wallet_ts ON audit_events(wallet_key, timestamp)`,

		`CREATE TABLE IF NOT EXISTS analytics_snapshots (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			wallet_key         TEXT NOT NULL,
			daily_spent        TEXT,
			monthly_spent      TEXT,
			daily_limit        TEXT,
			monthly_limit      TEXT,
			total_transactions INTEGER,
			is_frozen          INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analytics_ts ON analytics_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordEvent(evt *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reasons sql.NullString
	if len(evt.Reasons) > 0 {
		b, err := json.Marshal(evt.Reasons)
		if err != nil {
			return fmt.Errorf("encode reasons: %w", err)
		}
		reasons = sql.NullString{String: string(b), Valid: true}
	}
	var dailyLimit, dailySpent, monthlyLimit, monthlySpent sql.NullString
	var frozen sql.NullBool
	if rec := evt.Record; rec != nil {
		dailyLimit = nullDecimal(rec.DailyLimit)
		dailySpent = nullDecimal(rec.DailySpent)
		monthlyLimit = nullDecimal(rec.MonthlyLimit)
		monthlySpent = nullDecimal(rec.MonthlySpent)
		frozen = sql.NullBool{Bool: rec.IsFrozen, Valid: true}
	}

	_, err := r.db.Exec(`INSERT INTO audit_events
		(id, timestamp, kind, wallet_key, amount, recipient, reasons, note,
		 daily_limit, daily_spent, monthly_limit, monthly_spent, is_frozen)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		evt.ID, evt.Timestamp.UnixMilli(), string(evt.Kind), evt.WalletKey, evt.Amount.String(),
		evt.Recipient, reasons, evt.Note,
		dailyLimit, dailySpent, monthlyLimit, monthlySpent, frozen,
	)
	return err
}

func (r *SQLiteRecorder) RecordAnalytics(snap *AnalyticsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := snap.Analytics
	_, err := r.db.Exec(`INSERT INTO analytics_snapshots
		(timestamp, wallet_key, daily_spent, monthly_spent, daily_limit, monthly_limit, total_transactions, is_frozen)
		VALUES (?,?,?,?,?,?,?,?)`,
		snap.TakenAt.UnixMilli(), snap.WalletKey,
		a.DailySpent.String(), a.MonthlySpent.String(),
		a.DailyLimit.String(), a.MonthlyLimit.String(),
		a.TotalTransactions, snap.IsFrozen,
	)
	return err
}

// RecentEvents returns the wallet's latest audit entries, newest first.
func (r *SQLiteRecorder) RecentEvents(walletKey string, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, timestamp, kind, wallet_key, amount, recipient, reasons, note,
		daily_limit, daily_spent, monthly_limit, monthly_spent, is_frozen
		FROM audit_events WHERE wallet_key = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`, walletKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			evt                                                model.Event
			ts                                                 int64
			kind, amount                                       string
			recipient, reasons, note                           sql.NullString
			dailyLimit, dailySpent, monthlyLimit, monthlySpent sql.NullString
			frozen                                             sql.NullBool
		)
		if err := rows.Scan(&evt.ID, &ts, &kind, &evt.WalletKey, &amount, &recipient, &reasons, &note,
			&dailyLimit, &dailySpent, &monthlyLimit, &monthlySpent, &frozen); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		evt.Kind = model.EventKind(kind)
		evt.Timestamp = time.UnixMilli(ts).UTC()
		evt.Recipient = recipient.String
		evt.Note = note.String
		if evt.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("decode amount: %w", err)
		}
		if reasons.Valid {
			if err := json.Unmarshal([]byte(reasons.String), &evt.Reasons); err != nil {
				return nil, fmt.Errorf("decode reasons: %w", err)
			}
		}
		if frozen.Valid {
			info := model.SpendingInfo{IsFrozen: frozen.Bool}
			info.DailyLimit, _ = decimal.NewFromString(dailyLimit.String)
			info.DailySpent, _ = decimal.NewFromString(dailySpent.String)
			info.MonthlyLimit, _ = decimal.NewFromString(monthlyLimit.String)
			info.MonthlySpent, _ = decimal.NewFromString(monthlySpent.String)
			evt.Record = &info
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}

func nullDecimal(d decimal.Decimal) sql.NullString {
	return sql.NullString{String: d.String(), Valid: true}
}
