package recorder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"WalletGuard/internal/model"
)

func openTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "audit.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_EventsRoundTrip(t *testing.T) {
	r := openTestRecorder(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	denied := model.Event{
		ID:        "e1",
		Kind:      model.EventDenied,
		WalletKey: "GOWNER",
		Amount:    decimal.RequireFromString("1200.5"),
		Recipient: "GDEST",
		Reasons:   []string{"Wallet is frozen"},
		Record: &model.SpendingInfo{
			DailyLimit:   decimal.NewFromInt(1000),
			DailySpent:   decimal.NewFromInt(10),
			MonthlyLimit: decimal.NewFromInt(10000),
			MonthlySpent: decimal.NewFromInt(10),
			IsFrozen:     true,
		},
		Timestamp: base,
	}
	settings := model.Event{ID: "e2", Kind: model.EventSettingsChanged, WalletKey: "GOWNER", Amount: decimal.NewFromInt(50), Timestamp: base.Add(time.Minute)}
	other := model.Event{ID: "e3", Kind: model.EventFrozen, WalletKey: "GOTHER", Timestamp: base}

	for _, e := range []model.Event{denied, settings, other} {
		e := e
		require.NoError(t, r.RecordEvent(&e))
	}

	events, err := r.RecentEvents("GOWNER", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Nil(t, events[0].Record)
	assert.Nil(t, events[0].Reasons)

	got := events[1]
	assert.Equal(t, model.EventDenied, got.Kind)
	assert.Equal(t, "1200.5", got.Amount.String())
	assert.Equal(t, []string{"Wallet is frozen"}, got.Reasons)
	assert.True(t, got.Timestamp.Equal(base))
	require.NotNil(t, got.Record)
	assert.True(t, got.Record.IsFrozen)
	assert.Equal(t, "10", got.Record.DailySpent.String())

	events, err = r.RecentEvents("GOWNER", 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSQLiteRecorder_RecordAnalytics(t *testing.T) {
	r := openTestRecorder(t)
	err := r.RecordAnalytics(&AnalyticsSnapshot{
		WalletKey: "GOWNER",
		Analytics: model.Analytics{
			DailySpent:        decimal.NewFromInt(5),
			MonthlySpent:      decimal.NewFromInt(5),
			TotalTransactions: 3,
			DailyLimit:        decimal.NewFromInt(1000),
			MonthlyLimit:      decimal.NewFromInt(10000),
		},
		TakenAt: time.Now(),
	})
	require.NoError(t, err)

	var n, total int
	require.NoError(t, r.db.QueryRow(`SELECT COUNT(*), MAX(total_transactions) FROM analytics_snapshots`).Scan(&n, &total))
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, total)
}

func TestAuditor_LogsWriteFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	core, logs := observer.New(zap.WarnLevel)
	r := &SQLiteRecorder{db: db, logger: zap.NewNop()}
	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(errors.New("database is locked"))

	NewAuditor(r, zap.New(core)).Audit(context.Background(), model.Event{ID: "x", Kind: model.EventFrozen, WalletKey: "GOWNER"})

	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "record audit event", entry.Message)
	assert.Equal(t, "GOWNER", entry.ContextMap()["wallet"])
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordEvent(&model.Event{}))
	events, err := r.RecentEvents("GOWNER", 5)
	assert.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, r.Close())
}
