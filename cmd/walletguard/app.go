package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"WalletGuard/internal/config"
	"WalletGuard/internal/events"
	"WalletGuard/internal/guard"
	"WalletGuard/internal/metrics"
	"WalletGuard/internal/model"
	"WalletGuard/internal/notifier"
	"WalletGuard/internal/recorder"
	"WalletGuard/internal/store"
	"WalletGuard/internal/window"
)

// app is everything the commands share, built from one config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    store.Store
	rdb      *redis.Client
	recorder recorder.Recorder
	metrics  *metrics.Metrics
	notifier *notifier.TelegramNotifier
	alerter  *notifier.Alerter
	guard    *guard.Guard
	// snapshot is set only for the memory store.
	snapshot func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(logger)}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	switch cfg.Store.Driver {
	case "memory":
		ms := store.NewMemoryStore()
		if err := ms.LoadSnapshot(cfg.Store.SnapshotFile); err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		a.store = ms
		a.snapshot = func() error { return ms.SaveSnapshot(cfg.Store.SnapshotFile) }
	case "sqlite":
		if err := ensureDir(cfg.Store.SQLitePath); err != nil {
			return nil, err
		}
		ss, err := store.OpenSQLite(cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.store = ss
	case "redis":
		rs := store.NewRedisStore(a.rdb, cfg.Redis.Prefix, cfg.Redis.MaxRetries, logger)
		rs.OnRetry(a.metrics.StoreRetry("redis"))
		a.store = rs
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	logger.Info("store ready", zap.String("driver", cfg.Store.Driver))

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Audit.SQLitePath != "" {
		if err := ensureDir(cfg.Audit.SQLitePath); err != nil {
			return nil, err
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Audit.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			a.recorder = sr
		}
	}

	auditors := guard.Auditors{recorder.NewAuditor(a.recorder, logger), a.metrics}
	if cfg.Redis.Publish {
		auditors = append(auditors, events.NewRedisPublisher(a.rdb, cfg.Redis.Channel, logger))
	}
	if cfg.TelegramEnabled() {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		kinds := make([]model.EventKind, 0, len(cfg.Telegram.AlertKinds))
		for _, k := range cfg.Telegram.AlertKinds {
			kinds = append(kinds, model.EventKind(k))
		}
		a.alerter = notifier.NewAlerter(a.notifier, kinds, logger)
		auditors = append(auditors, a.alerter)
	}

	a.guard = guard.New(a.store, logger,
		guard.WithPolicy(window.Policy{Day: cfg.Window.Day, Month: cfg.Window.Month}),
		guard.WithAuditor(auditors),
	)
	return a, nil
}

// Close flushes the snapshot and releases every connection.
func (a *app) Close() {
	if a.snapshot != nil {
		if err := a.snapshot(); err != nil {
			a.logger.Error("save snapshot", zap.Error(err))
		}
	}
	if err := a.recorder.Close(); err != nil {
		a.logger.Warn("close recorder", zap.Error(err))
	}
	// The redis store owns the client and closes it itself.
	if _, ok := a.store.(*store.RedisStore); !ok && a.rdb != nil {
		a.rdb.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
