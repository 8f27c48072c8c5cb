package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"WalletGuard/internal/guard"
	"WalletGuard/internal/notifier"
	"WalletGuard/internal/recorder"
)

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron     *cron.Cron
	Guard    *guard.Guard
	Notifier *notifier.TelegramNotifier
	Recorder recorder.Recorder
	// Snapshot persists in-memory state; nil when the store is durable.
	Snapshot func() error
	Ctx      context.Context
	logger   *zap.Logger
}

// NewScheduler creates a new Scheduler. tn may be nil when Telegram is not configured.
func NewScheduler(ctx context.Context, g *guard.Guard, tn *notifier.TelegramNotifier, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Guard:    g,
		Notifier: tn,
		Recorder: rec,
		Ctx:      ctx,
		logger:   logger,
	}
}

// RegisterAll registers the sweep, analytics and snapshot tasks. An empty
// cron expression disables that task.
func (s *Scheduler) RegisterAll(sweepCron, analyticsCron, snapshotCron string) error {
	if sweepCron != "" {
		if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
			return fmt.Errorf("register sweep task: %w", err)
		}
	}
	if analyticsCron != "" {
		if _, err := s.Cron.AddFunc(analyticsCron, s.analyticsTask); err != nil {
			return fmt.Errorf("register analytics task: %w", err)
		}
	}
	if snapshotCron != "" && s.Snapshot != nil {
		if _, err := s.Cron.AddFunc(snapshotCron, s.snapshotTask); err != nil {
			return fmt.Errorf("register snapshot task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunSweepNow executes the window sweep immediately (for RUN_ON_START).
func (s *Scheduler) RunSweepNow() {
	s.sweepTask()
}

// RunAnalyticsNow records the analytics snapshot immediately.
func (s *Scheduler) RunAnalyticsNow() {
	s.analyticsTask()
}

func (s *Scheduler) sweepTask() {
	n, err := s.Guard.SweepWindows(s.Ctx)
	if err != nil {
		s.logger.Error("window sweep", zap.Int("reset", n), zap.Error(err))
		return
	}
	s.logger.Info("window sweep done", zap.Int("reset", n))
}

func (s *Scheduler) analyticsTask() {
	s.logger.Info("running analytics snapshot")
	wallets, err := s.Guard.Store().Wallets(s.Ctx)
	if err != nil {
		s.logger.Error("list wallets", zap.Error(err))
		return
	}

	frozen := 0
	now := s.Guard.Now()
	for _, w := range wallets {
		a, err := s.Guard.Analytics(s.Ctx, w)
		if err != nil {
			s.logger.Error("analytics", zap.String("wallet", w), zap.Error(err))
			continue
		}
		info, err := s.Guard.SpendingInfo(s.Ctx, w)
		if err != nil {
			s.logger.Error("spending info", zap.String("wallet", w), zap.Error(err))
			continue
		}
		if info.IsFrozen {
			frozen++
		}
		if err := s.Recorder.RecordAnalytics(&recorder.AnalyticsSnapshot{
			WalletKey: w,
			Analytics: a,
			IsFrozen:  info.IsFrozen,
			TakenAt:   now,
		}); err != nil {
			s.logger.Error("record analytics", zap.String("wallet", w), zap.Error(err))
		}
	}
	s.trySend(notifier.FormatDailySummary(len(wallets), frozen, now))
}

func (s *Scheduler) snapshotTask() {
	if err := s.Snapshot(); err != nil {
		s.logger.Error("save snapshot", zap.Error(err))
	}
}

// HandleCommand processes a Telegram command and returns a reply. Commands are
// read-only apart from /sweep, which only applies window rollovers.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return usage
	}
	var wallet string
	if len(fields) > 1 {
		wallet = fields[1]
	}

	switch fields[0] {
	case "/info":
		info, err := s.Guard.SpendingInfo(ctx, wallet)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatSpendingInfo(wallet, info)
	case "/analytics":
		a, err := s.Guard.Analytics(ctx, wallet)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatAnalytics(wallet, a)
	case "/history":
		txs, err := s.Guard.TransactionHistory(ctx, wallet)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatHistory(wallet, txs)
	case "/audit":
		if wallet == "" {
			return "❌ " + guard.ErrWalletKeyRequired.Error()
		}
		events, err := s.Recorder.RecentEvents(wallet, 10)
		if err != nil {
			return "❌ " + err.Error()
		}
		return notifier.FormatEvents(wallet, events)
	case "/sweep":
		n, err := s.Guard.SweepWindows(ctx)
		if err != nil {
			return "❌ " + err.Error()
		}
		return fmt.Sprintf("🔄 %d wallet(s) rolled over", n)
	default:
		return usage
	}
}

const usage = "Available commands:\n" +
	"• /info &lt;wallet&gt;\n" +
	"• /analytics &lt;wallet&gt;\n" +
	"• /history &lt;wallet&gt;\n" +
	"• /audit &lt;wallet&gt;\n" +
	"• /sweep"

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3, time.Second); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}
