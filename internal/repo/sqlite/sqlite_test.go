package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
	"github.com/hamed0406/netdetective/internal/repo/repotest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSQLiteStore_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Store { return newStore(t) })
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := New(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tg := &domain.Target{Name: "keep", URL: "https://keep.test", IntervalSec: 30, TimeoutSec: 3, Enabled: true}
	if err := s.Create(ctx, tg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.AppendOutcome(ctx, &domain.ProbeOutcome{TargetID: tg.ID, Error: "boom", Timestamp: repotest.Base}); err != nil {
		t.Fatalf("AppendOutcome: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = New(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.LatestOutcome(ctx, tg.ID)
	if err != nil || got == nil || got.Error != "boom" {
		t.Fatalf("outcome not persisted: %+v, %v", got, err)
	}
}

func TestFormatTS_SortsLikeTime(t *testing.T) {
	a := time.Date(2024, 1, 1, 9, 59, 59, 999_000_000, time.UTC)
	b := a.Add(time.Millisecond)
	if !(formatTS(a) < formatTS(b)) {
		t.Fatalf("%s should sort before %s", formatTS(a), formatTS(b))
	}
	// Non-UTC input is normalised before formatting.
	loc := time.FixedZone("X", 2*3600)
	if formatTS(b.In(loc)) != formatTS(b) {
		t.Fatalf("zone not normalised: %s vs %s", formatTS(b.In(loc)), formatTS(b))
	}
	back, err := parseTS(formatTS(b))
	if err != nil || !back.Equal(b) {
		t.Fatalf("parse round trip: %v, %v", back, err)
	}
}

func TestDSN(t *testing.T) {
	if got := dsn("x.db"); got != "file:x.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL" {
		t.Fatalf("dsn = %s", got)
	}
	if got := dsn("x.db?cache=shared"); got != "file:x.db?cache=shared&_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL" {
		t.Fatalf("dsn with query = %s", got)
	}
}
