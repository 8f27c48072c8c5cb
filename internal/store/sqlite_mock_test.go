package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

func TestSQLStore_UpdateRollsBackOnWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, zap.NewNop())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT wallet_key, daily_limit")).
		WithArgs("GX").
		WillReturnRows(sqlmock.NewRows([]string{"wallet_key"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO spending_records")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = s.UpdateRecord(context.Background(), "GX", t0, func(r *model.SpendingRecord) error {
		r.DailySpent = decimal.NewFromInt(5)
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_GetSettingsRejectsCorruptAmount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewSQLStore(db, zap.NewNop())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT auto_approve_trusted")).
		WithArgs("GY").
		WillReturnRows(sqlmock.NewRows([]string{"auto_approve_trusted", "require_memo", "max_tx_amount", "emergency_contact"}).
			AddRow(false, false, "lots", "GY"))

	_, _, err = s.GetSettings(context.Background(), "GY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tx_amount")
	assert.NoError(t, mock.ExpectationsWereMet())
}
