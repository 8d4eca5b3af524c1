package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
	"github.com/hamed0406/netdetective/internal/repo/repotest"
)

func TestMemoryStore_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Store { return New() })
}

func newWithTarget(t *testing.T) (*Store, domain.TargetID) {
	t.Helper()
	s := New()
	tg := &domain.Target{Name: "a", URL: "https://a.test", IntervalSec: 5, TimeoutSec: 1, Enabled: true}
	if err := s.Create(context.Background(), tg); err != nil {
		t.Fatal(err)
	}
	return s, tg.ID
}

func TestMemoryStore_AppendStampsMissingTimestamp(t *testing.T) {
	s, id := newWithTarget(t)
	o := &domain.ProbeOutcome{TargetID: id}
	if err := s.AppendOutcome(context.Background(), o); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	if o.Timestamp.IsZero() || time.Since(o.Timestamp) > time.Minute {
		t.Fatalf("timestamp not stamped: %v", o.Timestamp)
	}
}

func TestMemoryStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s, id := newWithTarget(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = s.AppendOutcome(ctx, &domain.ProbeOutcome{TargetID: id, Timestamp: time.Now().UTC()})
			}
		}()
	}
	wg.Wait()

	rows, _ := s.RecentOutcomes(ctx, id, 5000)
	if len(rows) != 1000 {
		t.Fatalf("want 1000 rows, got %d", len(rows))
	}
	seen := make(map[int64]bool, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			t.Fatalf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestMemoryStore_UnknownTargetIsNotFound(t *testing.T) {
	s := New()
	err := s.AppendOutcome(context.Background(), &domain.ProbeOutcome{TargetID: 7})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	err = s.AppendAlert(context.Background(), &domain.Alert{TargetID: 7, Kind: domain.AlertFailureStreak})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
