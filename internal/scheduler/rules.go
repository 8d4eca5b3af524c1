package scheduler

import (
	"fmt"

	"github.com/hamed0406/netdetective/internal/domain"
)

// Rules are process-wide alert settings.
type Rules struct {
	ThresholdMS int // latency alert when response time is strictly greater
	FailStreak  int // consecutive failures that raise a streak alert
}

// HistoryLen is how many recent outcomes Evaluate needs, newest first.
func (r Rules) HistoryLen() int { return r.FailStreak + 1 }

// Evaluate returns the alerts raised by latest. history holds the newest
// outcomes for the same target, newest first, including latest.
//
// The streak alert is edge-triggered: it fires when the newest FailStreak
// outcomes all failed and the one before them (if any) succeeded, so a
// continuing streak does not fire again until a success breaks it.
func Evaluate(r Rules, latest domain.ProbeOutcome, history []domain.ProbeOutcome) []domain.Alert {
	var alerts []domain.Alert

	if latest.ResponseTimeMS.Valid && latest.ResponseTimeMS.Float64 > float64(r.ThresholdMS) {
		alerts = append(alerts, domain.Alert{
			TargetID:  latest.TargetID,
			Kind:      domain.AlertLatencyThreshold,
			Message:   fmt.Sprintf("response_time_ms %.1f exceeded %d", latest.ResponseTimeMS.Float64, r.ThresholdMS),
			Timestamp: latest.Timestamp,
		})
	}

	if streakStarted(r.FailStreak, history) {
		alerts = append(alerts, domain.Alert{
			TargetID:  latest.TargetID,
			Kind:      domain.AlertFailureStreak,
			Message:   fmt.Sprintf("consecutive failures reached %d", r.FailStreak),
			Timestamp: latest.Timestamp,
		})
	}
	return alerts
}

func streakStarted(n int, history []domain.ProbeOutcome) bool {
	if n < 1 || len(history) < n {
		return false
	}
	for _, o := range history[:n] {
		if o.Success() {
			return false
		}
	}
	if len(history) > n {
		return history[n].Success()
	}
	return true
}
