package recorder

import "WalletGuard/internal/model"

// NoopRecorder is a no-op implementation used when the audit database is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordEvent(_ *model.Event) error                    { return nil }
func (n *NoopRecorder) RecordAnalytics(_ *AnalyticsSnapshot) error          { return nil }
func (n *NoopRecorder) RecentEvents(_ string, _ int) ([]model.Event, error) { return nil, nil }
func (n *NoopRecorder) Close() error                                        { return nil }
