package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"WalletGuard/internal/model"
)

// AnalyticsSnapshot is one wallet's analytics at the time of the daily job.
type AnalyticsSnapshot struct {
	WalletKey string
	Analytics model.Analytics
	IsFrozen  bool
	TakenAt   time.Time
}

// Recorder persists the audit trail for later analysis.
type Recorder interface {
	RecordEvent(evt *model.Event) error
	RecordAnalytics(snap *AnalyticsSnapshot) error
	RecentEvents(walletKey string, limit int) ([]model.Event, error)
	Close() error
}

// Auditor feeds guard events into a Recorder. Write failures are logged and
// dropped.
type Auditor struct {
	rec    Recorder
	logger *zap.Logger
}

func NewAuditor(rec Recorder, logger *zap.Logger) *Auditor {
	return &Auditor{rec: rec, logger: logger}
}

func (a *Auditor) Audit(_ context.Context, evt model.Event) {
	if err := a.rec.RecordEvent(&evt); err != nil {
		a.logger.Warn("record audit event",
			zap.String("kind", string(evt.Kind)),
			zap.String("wallet", evt.WalletKey),
			zap.Error(err))
	}
}
