package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/netdetective/internal/domain"
)

var ErrNotFound = errors.New("not found")

// AllTargets disables the per-target filter on queries that accept one.
const AllTargets domain.TargetID = 0

// Ports (interfaces). The memory, sqlite and postgres adapters implement both.
type TargetStore interface {
	Create(ctx context.Context, t *domain.Target) error
	Update(ctx context.Context, t *domain.Target) error
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	List(ctx context.Context) ([]domain.Target, error)
}

type ResultStore interface {
	AppendOutcome(ctx context.Context, o *domain.ProbeOutcome) error
	AppendAlert(ctx context.Context, a *domain.Alert) error

	// RecentOutcomes is newest first.
	RecentOutcomes(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeOutcome, error)
	// OutcomesSince is oldest first, at or after since.
	OutcomesSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.ProbeOutcome, error)
	// LatestOutcome returns nil, nil when the target has no outcomes.
	LatestOutcome(ctx context.Context, id domain.TargetID) (*domain.ProbeOutcome, error)
	LatestOutcomes(ctx context.Context) (map[domain.TargetID]domain.ProbeOutcome, error)

	RecentAlerts(ctx context.Context, id domain.TargetID, limit int) ([]domain.Alert, error)
	AlertsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.Alert, error)

	// DeleteTarget removes the target with its outcomes and alerts in one step.
	DeleteTarget(ctx context.Context, id domain.TargetID) error
}

type Store interface {
	TargetStore
	ResultStore
	Close() error
}
