package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

var t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"memory": NewMemoryStore()}

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "guard.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	out["sqlite"] = sq

	out["redis"] = newMiniRedisStore(t)
	return out
}

func newMiniRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, "walletguard-test", 100, zap.NewNop())
}

func TestStore_RecordLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.GetRecord(ctx, "GA")
			require.NoError(t, err)
			assert.False(t, found)

			rec, err := s.UpdateRecord(ctx, "GA", t0, func(r *model.SpendingRecord) error {
				r.DailySpent = r.DailySpent.Add(decimal.RequireFromString("12.5"))
				return nil
			})
			require.NoError(t, err)
			assert.True(t, rec.DailyLimit.Equal(model.DefaultDailyLimit))
			assert.Equal(t, "12.5", rec.DailySpent.String())

			got, found, err := s.GetRecord(ctx, "GA")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "12.5", got.DailySpent.String())
			assert.True(t, got.DayStart.Equal(t0), "day start %v", got.DayStart)
			assert.False(t, got.IsFrozen)

			wallets, err := s.Wallets(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"GA"}, wallets)
		})
	}
}

func TestStore_UpdateErrorsDoNotPersist(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.UpdateRecord(ctx, "GB", t0, func(r *model.SpendingRecord) error {
				r.IsFrozen = true
				return boom
			})
			assert.ErrorIs(t, err, boom)

			rec, err := s.UpdateRecord(ctx, "GB", t0, func(r *model.SpendingRecord) error {
				r.IsFrozen = true
				return ErrNoChange
			})
			require.NoError(t, err)
			assert.True(t, rec.IsFrozen, "returned record reflects fn")

			_, found, err := s.GetRecord(ctx, "GB")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	const workers = 40
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.UpdateRecord(ctx, "GC", t0, func(r *model.SpendingRecord) error {
						r.DailySpent = r.DailySpent.Add(decimal.NewFromInt(1))
						return nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			rec, _, err := s.GetRecord(ctx, "GC")
			require.NoError(t, err)
			assert.Equal(t, int64(workers), rec.DailySpent.IntPart())
		})
	}
}

func TestStore_PendingReservationsPersist(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			res := model.Reservation{
				ID: "r-1", WalletKey: "GP", Amount: decimal.RequireFromString("42.5"),
				DayStart: t0, MonthStart: t0,
			}
			_, err := s.UpdateRecord(ctx, "GP", t0, func(r *model.SpendingRecord) error {
				r.AddPending(res)
				return nil
			})
			require.NoError(t, err)

			rec, _, err := s.GetRecord(ctx, "GP")
			require.NoError(t, err)
			require.Len(t, rec.Pending, 1)
			assert.Equal(t, "r-1", rec.Pending[0].ID)
			assert.True(t, rec.Pending[0].Amount.Equal(res.Amount))
			assert.True(t, rec.Pending[0].DayStart.Equal(t0))

			rec, err = s.UpdateRecord(ctx, "GP", t0, func(r *model.SpendingRecord) error {
				if _, ok := r.TakePending("r-1"); !ok {
					return errors.New("reservation missing")
				}
				return nil
			})
			require.NoError(t, err)
			assert.Empty(t, rec.Pending)

			rec, _, err = s.GetRecord(ctx, "GP")
			require.NoError(t, err)
			assert.Empty(t, rec.Pending)
		})
	}
}

func TestRedisStore_RerunsUpdateAfterConflict(t *testing.T) {
	ctx := context.Background()
	s := newMiniRedisStore(t)
	retries := 0
	s.OnRetry(func(string) { retries++ })

	_, err := s.UpdateRecord(ctx, "GR", t0, func(r *model.SpendingRecord) error {
		r.DailySpent = decimal.NewFromInt(600)
		return nil
	})
	require.NoError(t, err)

	var seen []string
	rec, err := s.UpdateRecord(ctx, "GR", t0, func(r *model.SpendingRecord) error {
		seen = append(seen, r.DailySpent.String())
		if len(seen) == 1 {
			// Another writer lands between our read and our write.
			_, err := s.UpdateRecord(ctx, "GR", t0, func(r *model.SpendingRecord) error {
				r.DailySpent = r.DailySpent.Add(decimal.NewFromInt(300))
				return nil
			})
			require.NoError(t, err)
		}
		r.DailySpent = r.DailySpent.Add(decimal.NewFromInt(50))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"600", "900"}, seen)
	assert.Equal(t, 1, retries)
	assert.Equal(t, "950", rec.DailySpent.String())

	stored, _, err := s.GetRecord(ctx, "GR")
	require.NoError(t, err)
	assert.Equal(t, "950", stored.DailySpent.String())
}

func TestStore_SettingsAndContacts(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.GetSettings(ctx, "GD")
			require.NoError(t, err)
			assert.False(t, found)

			want := model.WalletSettings{RequireMemo: true, MaxTxAmount: decimal.NewFromInt(250), EmergencyContact: "GE"}
			require.NoError(t, s.PutSettings(ctx, "GD", want))
			got, found, err := s.GetSettings(ctx, "GD")
			require.NoError(t, err)
			require.True(t, found)
			assert.True(t, got.RequireMemo)
			assert.Equal(t, "250", got.MaxTxAmount.String())
			assert.Equal(t, "GE", got.EmergencyContact)

			require.NoError(t, s.PutContact(ctx, "GD", model.Contact{Name: "Alice", Address: "GALICE"}))
			require.NoError(t, s.PutContact(ctx, "GD", model.Contact{Name: "bob", Address: "GBOB", IsTrusted: true}))
			require.NoError(t, s.PutContact(ctx, "GD", model.Contact{Name: "ALICE", Address: "GALICE2"}))

			c, found, err := s.GetContact(ctx, "GD", "alice")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "GALICE2", c.Address)

			list, err := s.ListContacts(ctx, "GD")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "ALICE", list[0].Name)
			assert.True(t, list[1].IsTrusted)

			require.NoError(t, s.DeleteContact(ctx, "GD", "Alice"))
			require.NoError(t, s.DeleteContact(ctx, "GD", "nobody"))
			_, found, err = s.GetContact(ctx, "GD", "alice")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestStore_Transactions(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 12; i++ {
				require.NoError(t, s.AppendTransaction(ctx, "GF", model.Transaction{
					ID:        "tx-" + decimal.NewFromInt(int64(i)).String(),
					From:      "GF",
					To:        "GTO",
					Amount:    decimal.NewFromInt(int64(i)),
					Timestamp: t0.Add(time.Duration(i) * time.Minute),
					Type:      model.TxTypeSend,
				}))
			}

			n, err := s.CountTransactions(ctx, "GF")
			require.NoError(t, err)
			assert.Equal(t, 12, n)

			recent, err := s.RecentTransactions(ctx, "GF", model.HistoryLimit)
			require.NoError(t, err)
			require.Len(t, recent, 10)
			assert.Equal(t, "3", recent[0].Amount.String())
			assert.Equal(t, "12", recent[9].Amount.String())
			assert.Equal(t, "GF", recent[9].From)
		})
	}
}

func TestMemoryStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	src := NewMemoryStore()
	_, err := src.UpdateRecord(ctx, "GS", t0, func(r *model.SpendingRecord) error {
		r.MonthlySpent = decimal.NewFromInt(77)
		r.IsFrozen = true
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, src.PutContact(ctx, "GS", model.Contact{Name: "Carol", Address: "GCAROL"}))
	require.NoError(t, src.SaveSnapshot(path))

	dst := NewMemoryStore()
	require.NoError(t, dst.LoadSnapshot(path))
	rec, found, err := dst.GetRecord(ctx, "GS")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.IsFrozen)
	assert.Equal(t, "77", rec.MonthlySpent.String())
	_, found, _ = dst.GetContact(ctx, "GS", "carol")
	assert.True(t, found)
}

func TestMemoryStore_LoadMissingSnapshot(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.LoadSnapshot(filepath.Join(t.TempDir(), "absent.json")))
}
