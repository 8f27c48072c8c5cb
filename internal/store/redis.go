package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

// ErrTooManyConflicts is returned when an optimistic update keeps losing the race.
var ErrTooManyConflicts = errors.New("store: too many concurrent updates")

// RetryObserver is told about every optimistic-lock conflict.
type RetryObserver func(walletKey string)

// RedisStore keeps guard state in Redis. UpdateRecord is an optimistic
// WATCH/MULTI transaction retried on conflict.
type RedisStore struct {
	rdb        redis.UniversalClient
	prefix     string
	maxRetries int
	onRetry    RetryObserver
	logger     *zap.Logger
}

// NewRedisStore creates a store that namespaces all keys with prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, maxRetries int, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "walletguard"
	}
	if maxRetries <= 0 {
		maxRetries = 10
	}
	return &RedisStore{rdb: rdb, prefix: prefix, maxRetries: maxRetries, logger: logger}
}

// OnRetry registers a callback invoked on each optimistic-lock conflict.
func (s *RedisStore) OnRetry(fn RetryObserver) { s.onRetry = fn }

func (s *RedisStore) key(walletKey, kind string) string {
	return s.prefix + ":" + walletKey + ":" + kind
}

func (s *RedisStore) walletsKey() string { return s.prefix + ":wallets" }

func (s *RedisStore) GetRecord(ctx context.Context, walletKey string) (model.SpendingRecord, bool, error) {
	var rec model.SpendingRecord
	found, err := s.getJSON(ctx, s.rdb, s.key(walletKey, "spending"), &rec)
	if err != nil {
		return model.SpendingRecord{}, false, fmt.Errorf("get record: %w", err)
	}
	return rec, found, nil
}

func (s *RedisStore) UpdateRecord(ctx context.Context, walletKey string, now time.Time, fn UpdateFunc) (model.SpendingRecord, error) {
	recKey := s.key(walletKey, "spending")
	var result model.SpendingRecord

	txf := func(tx *redis.Tx) error {
		var rec model.SpendingRecord
		found, err := s.getJSON(ctx, tx, recKey, &rec)
		if err != nil {
			return err
		}
		if !found {
			rec = model.NewSpendingRecord(walletKey, now)
		}

		persist, err := apply(&rec, now, fn)
		if err != nil {
			return err
		}
		result = rec
		if !persist {
			return nil
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, recKey, data, 0)
			pipe.SAdd(ctx, s.walletsKey(), walletKey)
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, recKey)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return model.SpendingRecord{}, err
		}
		if s.onRetry != nil {
			s.onRetry(walletKey)
		}
		s.logger.Debug("optimistic update conflict, retrying",
			zap.String("wallet", walletKey), zap.Int("attempt", i+1))
	}
	return model.SpendingRecord{}, fmt.Errorf("update %s: %w", walletKey, ErrTooManyConflicts)
}

func (s *RedisStore) Wallets(ctx context.Context) ([]string, error) {
	keys, err := s.rdb.SMembers(ctx, s.walletsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) GetSettings(ctx context.Context, walletKey string) (model.WalletSettings, bool, error) {
	var st model.WalletSettings
	found, err := s.getJSON(ctx, s.rdb, s.key(walletKey, "settings"), &st)
	if err != nil {
		return model.WalletSettings{}, false, fmt.Errorf("get settings: %w", err)
	}
	return st, found, nil
}

func (s *RedisStore) PutSettings(ctx context.Context, walletKey string, st model.WalletSettings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.rdb.Set(ctx, s.key(walletKey, "settings"), data, 0).Err()
}

func (s *RedisStore) GetContact(ctx context.Context, walletKey, name string) (model.Contact, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key(walletKey, "contacts"), model.ContactKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return model.Contact{}, false, nil
	}
	if err != nil {
		return model.Contact{}, false, fmt.Errorf("get contact: %w", err)
	}
	var c model.Contact
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return model.Contact{}, false, fmt.Errorf("decode contact: %w", err)
	}
	return c, true, nil
}

func (s *RedisStore) ListContacts(ctx context.Context, walletKey string) ([]model.Contact, error) {
	all, err := s.rdb.HGetAll(ctx, s.key(walletKey, "contacts")).Result()
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	out := make([]model.Contact, 0, len(all))
	for _, raw := range all {
		var c model.Contact
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("decode contact: %w", err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return model.ContactKey(out[i].Name) < model.ContactKey(out[j].Name) })
	return out, nil
}

func (s *RedisStore) PutContact(ctx context.Context, walletKey string, c model.Contact) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode contact: %w", err)
	}
	return s.rdb.HSet(ctx, s.key(walletKey, "contacts"), model.ContactKey(c.Name), data).Err()
}

func (s *RedisStore) DeleteContact(ctx context.Context, walletKey, name string) error {
	return s.rdb.HDel(ctx, s.key(walletKey, "contacts"), model.ContactKey(name)).Err()
}

func (s *RedisStore) AppendTransaction(ctx context.Context, walletKey string, t model.Transaction) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	return s.rdb.RPush(ctx, s.key(walletKey, "transactions"), data).Err()
}

func (s *RedisStore) RecentTransactions(ctx context.Context, walletKey string, limit int) ([]model.Transaction, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raws, err := s.rdb.LRange(ctx, s.key(walletKey, "transactions"), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	out := make([]model.Transaction, 0, len(raws))
	for _, raw := range raws {
		var t model.Transaction
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) CountTransactions(ctx context.Context, walletKey string) (int, error) {
	n, err := s.rdb.LLen(ctx, s.key(walletKey, "transactions")).Result()
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) getJSON(ctx context.Context, c getter, key string, v any) (bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
