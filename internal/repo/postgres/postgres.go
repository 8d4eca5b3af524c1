package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS targets (
  id           BIGSERIAL PRIMARY KEY,
  name         TEXT    NOT NULL,
  url          TEXT    NOT NULL,
  interval_sec INTEGER NOT NULL DEFAULT 60,
  timeout_sec  INTEGER NOT NULL DEFAULT 10,
  enabled      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS probe_results (
  id               BIGSERIAL PRIMARY KEY,
  target_id        BIGINT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  status_code      INTEGER NULL,
  response_time_ms DOUBLE PRECISION NULL,
  dns_time_ms      DOUBLE PRECISION NULL,
  error            TEXT NOT NULL DEFAULT '',
  ts               TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
  id        BIGSERIAL PRIMARY KEY,
  target_id BIGINT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
  kind      TEXT NOT NULL,
  message   TEXT NOT NULL,
  ts        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probe_results_target_ts ON probe_results (target_id, ts);
CREATE INDEX IF NOT EXISTS idx_alerts_target_ts        ON alerts (target_id, ts);
`

const outcomeCols = `id, target_id, status_code, response_time_ms, dns_time_ms, error, ts`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Create(ctx context.Context, t *domain.Target) error {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO targets (name, url, interval_sec, timeout_sec, enabled)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		t.Name, t.URL, t.IntervalSec, t.TimeoutSec, t.Enabled,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	t.ID = domain.TargetID(id)
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET name = $1, url = $2, interval_sec = $3, timeout_sec = $4, enabled = $5
		  WHERE id = $6`,
		t.Name, t.URL, t.IntervalSec, t.TimeoutSec, t.Enabled, int64(t.ID))
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, interval_sec, timeout_sec, enabled FROM targets WHERE id = $1`, int64(id))
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, interval_sec, timeout_sec, enabled FROM targets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTarget(row pgx.Row) (domain.Target, error) {
	var (
		t  domain.Target
		id int64
	)
	err := row.Scan(&id, &t.Name, &t.URL, &t.IntervalSec, &t.TimeoutSec, &t.Enabled)
	t.ID = domain.TargetID(id)
	return t, err
}

// ---- ResultStore ----

func (s *Store) AppendOutcome(ctx context.Context, o *domain.ProbeOutcome) error {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO probe_results
		   (target_id, status_code, response_time_ms, dns_time_ms, error, ts)
		 VALUES
		   ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		int64(o.TargetID), o.StatusCode.Ptr(), o.ResponseTimeMS.Ptr(), o.DNSTimeMS.Ptr(), o.Error, o.Timestamp,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (s *Store) AppendAlert(ctx context.Context, a *domain.Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alerts (target_id, kind, message, ts) VALUES ($1, $2, $3, $4) RETURNING id`,
		int64(a.TargetID), string(a.Kind), a.Message, a.Timestamp,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) RecentOutcomes(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT `+outcomeCols+` FROM probe_results WHERE target_id = $1 ORDER BY id DESC LIMIT $2`,
		int64(id), limit)
}

func (s *Store) OutcomesSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.ProbeOutcome, error) {
	// $1 = 0 means every target.
	return s.queryOutcomes(ctx,
		`SELECT `+outcomeCols+` FROM probe_results
		  WHERE ($1::bigint = 0 OR target_id = $1::bigint) AND ts >= $2
		  ORDER BY ts, id`,
		int64(id), since)
}

func (s *Store) LatestOutcome(ctx context.Context, id domain.TargetID) (*domain.ProbeOutcome, error) {
	rows, err := s.RecentOutcomes(ctx, id, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) LatestOutcomes(ctx context.Context) (map[domain.TargetID]domain.ProbeOutcome, error) {
	rows, err := s.queryOutcomes(ctx, `
SELECT DISTINCT ON (target_id) `+outcomeCols+`
  FROM probe_results
 ORDER BY target_id, id DESC`)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.TargetID]domain.ProbeOutcome, len(rows))
	for _, o := range rows {
		out[o.TargetID] = o
	}
	return out, nil
}

func (s *Store) queryOutcomes(ctx context.Context, q string, args ...any) ([]domain.ProbeOutcome, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.ProbeOutcome
	for rows.Next() {
		var (
			o        domain.ProbeOutcome
			targetID int64
			status   *int64
			rt, dns  *float64
		)
		if err := rows.Scan(&o.ID, &targetID, &status, &rt, &dns, &o.Error, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.TargetID = domain.TargetID(targetID)
		o.StatusCode = null.IntFromPtr(status)
		o.ResponseTimeMS = null.FloatFromPtr(rt)
		o.DNSTimeMS = null.FloatFromPtr(dns)
		o.Timestamp = o.Timestamp.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) RecentAlerts(ctx context.Context, id domain.TargetID, limit int) ([]domain.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT id, target_id, kind, message, ts FROM alerts
		  WHERE ($1::bigint = 0 OR target_id = $1::bigint)
		  ORDER BY id DESC LIMIT $2`,
		int64(id), limit)
}

func (s *Store) AlertsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.Alert, error) {
	return s.queryAlerts(ctx,
		`SELECT id, target_id, kind, message, ts FROM alerts
		  WHERE ($1::bigint = 0 OR target_id = $1::bigint) AND ts >= $2
		  ORDER BY ts, id`,
		int64(id), since)
}

func (s *Store) queryAlerts(ctx context.Context, q string, args ...any) ([]domain.Alert, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			targetID int64
			kind     string
		)
		if err := rows.Scan(&a.ID, &targetID, &kind, &a.Message, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TargetID = domain.TargetID(targetID)
		a.Kind = domain.AlertKind(kind)
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTarget(ctx context.Context, id domain.TargetID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM probe_results WHERE target_id = $1`, int64(id)); err != nil {
		return fmt.Errorf("delete outcomes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM alerts WHERE target_id = $1`, int64(id)); err != nil {
		return fmt.Errorf("delete alerts: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM targets WHERE id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return tx.Commit(ctx)
}
