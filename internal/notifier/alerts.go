package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

// DefaultAlertKinds are the events worth interrupting the owner for.
var DefaultAlertKinds = []model.EventKind{
	model.EventFrozen,
	model.EventUnfrozen,
	model.EventEmergencyFrozen,
	model.EventDenied,
	model.EventLimitChanged,
}

// Alerter queues selected guard events and delivers them to Telegram in the
// background, so a slow Bot API never holds up a decision.
type Alerter struct {
	notifier   *TelegramNotifier
	kinds      map[model.EventKind]bool
	queue      chan string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewAlerter creates an Alerter for the given kinds (DefaultAlertKinds if empty).
func NewAlerter(n *TelegramNotifier, kinds []model.EventKind, logger *zap.Logger) *Alerter {
	if len(kinds) == 0 {
		kinds = DefaultAlertKinds
	}
	set := make(map[model.EventKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return &Alerter{
		notifier:   n,
		kinds:      set,
		queue:      make(chan string, 64),
		maxRetries: 2,
		retryDelay: time.Second,
		logger:     logger,
	}
}

func (a *Alerter) Audit(_ context.Context, evt model.Event) {
	if !a.kinds[evt.Kind] {
		return
	}
	select {
	case a.queue <- FormatAlert(evt):
	default:
		a.logger.Warn("alert queue full, dropping alert",
			zap.String("kind", string(evt.Kind)), zap.String("wallet", evt.WalletKey))
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-a.queue:
			if err := a.notifier.SendWithRetry(ctx, text, a.maxRetries, a.retryDelay); err != nil {
				a.logger.Error("deliver alert", zap.Error(err))
			}
		}
	}
}
