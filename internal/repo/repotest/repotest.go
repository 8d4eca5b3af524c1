// Package repotest holds behaviour checks shared by every repo.Store backend.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

// Run exercises newStore against the repo.Store contract. newStore must
// return an empty store; the suite closes it.
func Run(t *testing.T, newStore func(t *testing.T) repo.Store) {
	t.Run("TargetsCRUD", func(t *testing.T) { testTargetsCRUD(t, newStore(t)) })
	t.Run("RecentOutcomesNewestFirst", func(t *testing.T) { testRecentOutcomes(t, newStore(t)) })
	t.Run("OutcomesSince", func(t *testing.T) { testOutcomesSince(t, newStore(t)) })
	t.Run("LatestOutcome", func(t *testing.T) { testLatest(t, newStore(t)) })
	t.Run("NullableFields", func(t *testing.T) { testNullable(t, newStore(t)) })
	t.Run("Alerts", func(t *testing.T) { testAlerts(t, newStore(t)) })
	t.Run("DeleteTargetCascades", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("AppendAfterDeleteRejected", func(t *testing.T) { testAppendAfterDelete(t, newStore(t)) })
}

// Base is a fixed reference time with whole-microsecond precision so every
// backend round-trips it unchanged.
var Base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func mustTarget(t *testing.T, s repo.Store, name string) domain.Target {
	t.Helper()
	tg := &domain.Target{
		Name:        name,
		URL:         "https://" + name + ".test",
		IntervalSec: 60,
		TimeoutSec:  5,
		Enabled:     true,
	}
	if err := s.Create(context.Background(), tg); err != nil {
		t.Fatalf("Create %s: %v", name, err)
	}
	if tg.ID == 0 {
		t.Fatalf("Create %s: id not assigned", name)
	}
	return *tg
}

func appendOutcome(t *testing.T, s repo.Store, id domain.TargetID, ts time.Time, ms float64) domain.ProbeOutcome {
	t.Helper()
	o := &domain.ProbeOutcome{
		TargetID:       id,
		StatusCode:     null.IntFrom(200),
		ResponseTimeMS: null.FloatFrom(ms),
		DNSTimeMS:      null.FloatFrom(1.5),
		Timestamp:      ts,
	}
	if err := s.AppendOutcome(context.Background(), o); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	return *o
}

func testTargetsCRUD(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()

	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")
	if a.ID == b.ID {
		t.Fatalf("ids collide: %d", a.ID)
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "alpha" || got.URL != "https://alpha.test" || !got.Enabled || got.IntervalSec != 60 || got.TimeoutSec != 5 {
		t.Fatalf("Get returned %+v", got)
	}

	a.Enabled = false
	a.IntervalSec = 15
	if err := s.Update(ctx, &a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = s.Get(ctx, a.ID)
	if got.Enabled || got.IntervalSec != 15 {
		t.Fatalf("Update not applied: %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("List order wrong: %+v", list)
	}

	if _, err := s.Get(ctx, 9999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Get missing: want ErrNotFound, got %v", err)
	}
	missing := domain.Target{ID: 9999, Name: "x", URL: "https://x.test", IntervalSec: 1, TimeoutSec: 1}
	if err := s.Update(ctx, &missing); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Update missing: want ErrNotFound, got %v", err)
	}
}

func testRecentOutcomes(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")

	// Same timestamp on purpose: recency is insertion order, not clock order.
	for i := 0; i < 5; i++ {
		appendOutcome(t, s, a.ID, Base, float64(i))
		appendOutcome(t, s, b.ID, Base, 100+float64(i))
	}

	got, err := s.RecentOutcomes(ctx, a.ID, 3)
	if err != nil {
		t.Fatalf("RecentOutcomes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 rows, got %d", len(got))
	}
	for i, want := range []float64{4, 3, 2} {
		if got[i].TargetID != a.ID || got[i].ResponseTimeMS.Float64 != want {
			t.Fatalf("row %d: want %v for target %d, got %+v", i, want, a.ID, got[i])
		}
	}

	got, _ = s.RecentOutcomes(ctx, a.ID, 50)
	if len(got) != 5 {
		t.Fatalf("want all 5 rows, got %d", len(got))
	}
	if got, _ := s.RecentOutcomes(ctx, 9999, 5); len(got) != 0 {
		t.Fatalf("unknown target should have no rows, got %d", len(got))
	}
}

func testOutcomesSince(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")

	for i := 0; i < 4; i++ {
		appendOutcome(t, s, a.ID, Base.Add(time.Duration(i)*time.Minute), float64(i))
	}
	appendOutcome(t, s, b.ID, Base.Add(3*time.Minute), 99)

	got, err := s.OutcomesSince(ctx, a.ID, Base.Add(time.Minute))
	if err != nil {
		t.Fatalf("OutcomesSince: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("rows not ascending: %v then %v", got[i-1].Timestamp, got[i].Timestamp)
		}
	}
	if !got[0].Timestamp.Equal(Base.Add(time.Minute)) {
		t.Fatalf("since bound should be inclusive, first ts %v", got[0].Timestamp)
	}

	all, _ := s.OutcomesSince(ctx, repo.AllTargets, Base.Add(3*time.Minute))
	if len(all) != 2 {
		t.Fatalf("AllTargets: want 2 rows, got %d", len(all))
	}
}

func testLatest(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")

	o, err := s.LatestOutcome(ctx, a.ID)
	if err != nil || o != nil {
		t.Fatalf("no outcomes yet: want nil, nil; got %+v, %v", o, err)
	}

	appendOutcome(t, s, a.ID, Base, 1)
	appendOutcome(t, s, a.ID, Base.Add(time.Second), 2)
	appendOutcome(t, s, b.ID, Base, 7)

	o, err = s.LatestOutcome(ctx, a.ID)
	if err != nil || o == nil {
		t.Fatalf("LatestOutcome: %+v, %v", o, err)
	}
	if o.ResponseTimeMS.Float64 != 2 {
		t.Fatalf("latest for a: got %v", o.ResponseTimeMS)
	}

	all, err := s.LatestOutcomes(ctx)
	if err != nil {
		t.Fatalf("LatestOutcomes: %v", err)
	}
	if len(all) != 2 || all[a.ID].ResponseTimeMS.Float64 != 2 || all[b.ID].ResponseTimeMS.Float64 != 7 {
		t.Fatalf("LatestOutcomes wrong: %+v", all)
	}
}

func testNullable(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")

	in := &domain.ProbeOutcome{
		TargetID:  a.ID,
		Error:     "DNS error: no such host",
		Timestamp: Base,
	}
	if err := s.AppendOutcome(ctx, in); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	if in.ID == 0 {
		t.Fatalf("outcome id not assigned")
	}
	got, err := s.LatestOutcome(ctx, a.ID)
	if err != nil || got == nil {
		t.Fatalf("LatestOutcome: %+v, %v", got, err)
	}
	if got.StatusCode.Valid || got.ResponseTimeMS.Valid || got.DNSTimeMS.Valid {
		t.Fatalf("absent fields should stay null: %+v", got)
	}
	if got.Error != in.Error || !got.Timestamp.Equal(Base) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func testAlerts(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")

	for i := 0; i < 3; i++ {
		for _, id := range []domain.TargetID{a.ID, b.ID} {
			al := &domain.Alert{
				TargetID:  id,
				Kind:      domain.AlertFailureStreak,
				Message:   fmt.Sprintf("alert %d", i),
				Timestamp: Base.Add(time.Duration(i) * time.Minute),
			}
			if err := s.AppendAlert(ctx, al); err != nil {
				t.Fatalf("AppendAlert: %v", err)
			}
			if al.ID == 0 {
				t.Fatalf("alert id not assigned")
			}
		}
	}

	recent, err := s.RecentAlerts(ctx, repo.AllTargets, 4)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(recent) != 4 || recent[0].Message != "alert 2" || recent[0].TargetID != b.ID {
		t.Fatalf("RecentAlerts all: %+v", recent)
	}

	recent, _ = s.RecentAlerts(ctx, a.ID, 10)
	if len(recent) != 3 || recent[0].Message != "alert 2" || recent[2].Message != "alert 0" {
		t.Fatalf("RecentAlerts a: %+v", recent)
	}
	if recent[0].Kind != domain.AlertFailureStreak {
		t.Fatalf("kind lost: %+v", recent[0])
	}

	since, err := s.AlertsSince(ctx, a.ID, Base.Add(time.Minute))
	if err != nil {
		t.Fatalf("AlertsSince: %v", err)
	}
	if len(since) != 2 || since[0].Message != "alert 1" {
		t.Fatalf("AlertsSince: %+v", since)
	}
}

func testDelete(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	b := mustTarget(t, s, "bravo")

	appendOutcome(t, s, a.ID, Base, 1)
	appendOutcome(t, s, b.ID, Base, 2)
	if err := s.AppendAlert(ctx, &domain.Alert{TargetID: a.ID, Kind: domain.AlertLatencyThreshold, Message: "slow", Timestamp: Base}); err != nil {
		t.Fatalf("AppendAlert: %v", err)
	}

	if err := s.DeleteTarget(ctx, a.ID); err != nil {
		t.Fatalf("DeleteTarget: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleted target still readable: %v", err)
	}
	if rows, _ := s.RecentOutcomes(ctx, a.ID, 10); len(rows) != 0 {
		t.Fatalf("outcomes survived delete: %d", len(rows))
	}
	if rows, _ := s.RecentAlerts(ctx, a.ID, 10); len(rows) != 0 {
		t.Fatalf("alerts survived delete: %d", len(rows))
	}
	if rows, _ := s.RecentOutcomes(ctx, b.ID, 10); len(rows) != 1 {
		t.Fatalf("other target's outcomes touched: %d", len(rows))
	}
	if err := s.DeleteTarget(ctx, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

// testAppendAfterDelete covers a run that finishes after its target was
// deleted: the write must fail instead of leaving orphan rows.
func testAppendAfterDelete(t *testing.T, s repo.Store) {
	defer s.Close()
	ctx := context.Background()
	a := mustTarget(t, s, "alpha")
	if err := s.DeleteTarget(ctx, a.ID); err != nil {
		t.Fatalf("DeleteTarget: %v", err)
	}

	o := &domain.ProbeOutcome{TargetID: a.ID, StatusCode: null.IntFrom(200), ResponseTimeMS: null.FloatFrom(1), Timestamp: Base}
	if err := s.AppendOutcome(ctx, o); err == nil {
		t.Fatalf("AppendOutcome for deleted target succeeded")
	}
	al := &domain.Alert{TargetID: a.ID, Kind: domain.AlertFailureStreak, Message: "late", Timestamp: Base}
	if err := s.AppendAlert(ctx, al); err == nil {
		t.Fatalf("AppendAlert for deleted target succeeded")
	}

	if rows, _ := s.OutcomesSince(ctx, repo.AllTargets, time.Time{}); len(rows) != 0 {
		t.Fatalf("orphan outcomes: %+v", rows)
	}
	if rows, _ := s.AlertsSince(ctx, repo.AllTargets, time.Time{}); len(rows) != 0 {
		t.Fatalf("orphan alerts: %+v", rows)
	}
}
