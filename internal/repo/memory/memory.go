package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

// Store keeps everything in process memory. Used by tests and for quick
// local runs; nothing survives a restart.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	targets   map[domain.TargetID]domain.Target
	outcomes  []domain.ProbeOutcome // append order
	alerts    []domain.Alert
	outcomeID int64
	alertID   int64
}

func New() *Store {
	return &Store{
		targets:  make(map[domain.TargetID]domain.Target),
		outcomes: make([]domain.ProbeOutcome, 0, 128),
	}
}

func (m *Store) Close() error { return nil }

// ---- TargetStore ----

func (m *Store) Create(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = domain.TargetID(m.nextID)
	m.targets[t.ID] = *t
	return nil
}

func (m *Store) Update(ctx context.Context, t *domain.Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[t.ID]; !ok {
		return repo.ErrNotFound
	}
	m.targets[t.ID] = *t
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &t, nil
}

func (m *Store) List(ctx context.Context) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for id := domain.TargetID(1); id <= domain.TargetID(m.nextID); id++ {
		if t, ok := m.targets[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// ---- ResultStore ----

// AppendOutcome and AppendAlert reject unknown targets, like the foreign
// keys of the SQL backends.
func (m *Store) AppendOutcome(ctx context.Context, o *domain.ProbeOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[o.TargetID]; !ok {
		return fmt.Errorf("append outcome for target %d: %w", o.TargetID, repo.ErrNotFound)
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	m.outcomeID++
	o.ID = m.outcomeID
	m.outcomes = append(m.outcomes, *o)
	return nil
}

func (m *Store) AppendAlert(ctx context.Context, a *domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[a.TargetID]; !ok {
		return fmt.Errorf("append alert for target %d: %w", a.TargetID, repo.ErrNotFound)
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	m.alertID++
	a.ID = m.alertID
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *Store) RecentOutcomes(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProbeOutcome
	for i := len(m.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		if m.outcomes[i].TargetID == id {
			out = append(out, m.outcomes[i])
		}
	}
	return out, nil
}

func (m *Store) OutcomesSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.ProbeOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ProbeOutcome
	for _, o := range m.outcomes {
		if (id == repo.AllTargets || o.TargetID == id) && !o.Timestamp.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Store) LatestOutcome(ctx context.Context, id domain.TargetID) (*domain.ProbeOutcome, error) {
	rows, err := m.RecentOutcomes(ctx, id, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (m *Store) LatestOutcomes(ctx context.Context) (map[domain.TargetID]domain.ProbeOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := make(map[domain.TargetID]domain.ProbeOutcome)
	for _, o := range m.outcomes {
		latest[o.TargetID] = o // later rows overwrite earlier ones
	}
	return latest, nil
}

func (m *Store) RecentAlerts(ctx context.Context, id domain.TargetID, limit int) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alert
	for i := len(m.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if id == repo.AllTargets || m.alerts[i].TargetID == id {
			out = append(out, m.alerts[i])
		}
	}
	return out, nil
}

func (m *Store) AlertsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alert
	for _, a := range m.alerts {
		if (id == repo.AllTargets || a.TargetID == id) && !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Store) DeleteTarget(ctx context.Context, id domain.TargetID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(m.targets, id)

	outcomes := m.outcomes[:0]
	for _, o := range m.outcomes {
		if o.TargetID != id {
			outcomes = append(outcomes, o)
		}
	}
	m.outcomes = outcomes

	alerts := m.alerts[:0]
	for _, a := range m.alerts {
		if a.TargetID != id {
			alerts = append(alerts, a)
		}
	}
	m.alerts = alerts
	return nil
}

var _ repo.Store = (*Store)(nil)
