package scheduler

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/notify"
	"github.com/hamed0406/netdetective/internal/repo"
)

// Alerter turns a freshly stored outcome into persisted, notified alerts.
type Alerter struct {
	results  repo.ResultStore
	notifier notify.Notifier
	rules    Rules
	log      *zap.Logger
}

func NewAlerter(results repo.ResultStore, notifier notify.Notifier, rules Rules, log *zap.Logger) *Alerter {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Alerter{
		results:  results,
		notifier: notifier,
		rules:    rules,
		log:      log,
	}
}

// Evaluate must run after latest has been appended. Storage and notifier
// failures are logged; the alerts that were stored are returned.
func (a *Alerter) Evaluate(ctx context.Context, t domain.Target, latest domain.ProbeOutcome) []domain.Alert {
	history, err := a.results.RecentOutcomes(ctx, t.ID, a.rules.HistoryLen())
	if err != nil {
		// Latency still gets evaluated; the streak rule sees no history.
		a.log.Warn("history_read_error",
			zap.Int64("target_id", int64(t.ID)),
			zap.Error(err),
		)
		history = nil
	}

	var stored []domain.Alert
	for _, al := range Evaluate(a.rules, latest, history) {
		al.TargetID = t.ID
		al.Timestamp = latest.Timestamp
		if err := a.results.AppendAlert(ctx, &al); err != nil {
			a.log.Warn("alert_append_error",
				zap.Int64("target_id", int64(t.ID)),
				zap.String("kind", string(al.Kind)),
				zap.Error(err),
			)
			continue
		}
		stored = append(stored, al)

		a.log.Warn("alert_fired",
			zap.Int64("target_id", int64(t.ID)),
			zap.String("target", t.Name),
			zap.String("url", t.URL),
			zap.String("kind", string(al.Kind)),
			zap.String("message", al.Message),
		)
		// Best-effort send
		if err := a.notifier.Send(ctx, notify.Event{Target: t, Alert: al}); err != nil {
			a.log.Warn("notify_error",
				zap.Int64("target_id", int64(t.ID)),
				zap.Error(err),
			)
		}
	}
	return stored
}
