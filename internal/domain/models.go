package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

type TargetID int64

// ErrInvalidTarget is wrapped by Target.Validate.
var ErrInvalidTarget = errors.New("invalid target")

type Target struct {
	ID          TargetID `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	IntervalSec int      `json:"interval_sec"`
	TimeoutSec  int      `json:"timeout_sec"`
	Enabled     bool     `json:"enabled"`
}

// Validate checks the definition, not the URL: an unparseable URL is
// reported by the prober as a failed outcome instead.
func (t Target) Validate() error {
	switch {
	case strings.TrimSpace(t.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidTarget)
	case strings.TrimSpace(t.URL) == "":
		return fmt.Errorf("%w: url is required", ErrInvalidTarget)
	case t.IntervalSec < 1:
		return fmt.Errorf("%w: interval_sec must be >= 1", ErrInvalidTarget)
	case t.TimeoutSec < 1:
		return fmt.Errorf("%w: timeout_sec must be >= 1", ErrInvalidTarget)
	}
	return nil
}

func (t Target) Interval() time.Duration { return time.Duration(t.IntervalSec) * time.Second }
func (t Target) Timeout() time.Duration  { return time.Duration(t.TimeoutSec) * time.Second }

// ProbeOutcome is one recorded probe. Optional measurements are null when
// the corresponding step never ran or failed.
type ProbeOutcome struct {
	ID             int64      `json:"id"`
	TargetID       TargetID   `json:"target_id"`
	StatusCode     null.Int   `json:"status_code"`
	ResponseTimeMS null.Float `json:"response_time_ms"`
	DNSTimeMS      null.Float `json:"dns_time_ms"`
	Error          string     `json:"error"`
	Timestamp      time.Time  `json:"ts"`
}

func (o ProbeOutcome) Success() bool {
	return IsSuccess(o.StatusCode, o.Error)
}

// IsSuccess: no error, a status code, and the code within 200..399.
func IsSuccess(status null.Int, errMsg string) bool {
	if errMsg != "" || !status.Valid {
		return false
	}
	return status.Int64 >= 200 && status.Int64 <= 399
}

type AlertKind string

const (
	AlertLatencyThreshold AlertKind = "latency_threshold"
	AlertFailureStreak    AlertKind = "failure_streak"
)

type Alert struct {
	ID        int64     `json:"id"`
	TargetID  TargetID  `json:"target_id"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}
