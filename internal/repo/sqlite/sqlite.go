package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v5"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Timestamps are stored as fixed-width UTC text so that string order is
// time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS targets (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT    NOT NULL,
	url          TEXT    NOT NULL,
	interval_sec INTEGER NOT NULL DEFAULT 60,
	timeout_sec  INTEGER NOT NULL DEFAULT 10,
	enabled      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS probe_results (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id        INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	status_code      INTEGER,
	response_time_ms REAL,
	dns_time_ms      REAL,
	error            TEXT    NOT NULL DEFAULT '',
	ts               TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS alerts (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
	kind      TEXT    NOT NULL,
	message   TEXT    NOT NULL,
	ts        TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probe_results_target_ts ON probe_results (target_id, ts);
CREATE INDEX IF NOT EXISTS idx_alerts_target_ts        ON alerts (target_id, ts);
`

const outcomeCols = `id, target_id, status_code, response_time_ms, dns_time_ms, error, ts`

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the database file at path and applies the
// schema.
func New(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Debug("sqlite_ready", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func dsn(path string) string {
	params := "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return "file:" + path + "&" + params
	}
	return "file:" + path + "?" + params
}

func (s *Store) Close() error { return s.db.Close() }

// ---- TargetStore ----

func (s *Store) Create(ctx context.Context, t *domain.Target) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO targets (name, url, interval_sec, timeout_sec, enabled)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.URL, t.IntervalSec, t.TimeoutSec, t.Enabled)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("target id: %w", err)
	}
	t.ID = domain.TargetID(id)
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE targets
		    SET name = ?, url = ?, interval_sec = ?, timeout_sec = ?, enabled = ?
		  WHERE id = ?`,
		t.Name, t.URL, t.IntervalSec, t.TimeoutSec, t.Enabled, int64(t.ID))
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, interval_sec, timeout_sec, enabled FROM targets WHERE id = ?`, int64(id))
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
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

type scanner interface {
	Scan(dest ...any) error
}

func scanTarget(sc scanner) (domain.Target, error) {
	var (
		t  domain.Target
		id int64
	)
	err := sc.Scan(&id, &t.Name, &t.URL, &t.IntervalSec, &t.TimeoutSec, &t.Enabled)
	t.ID = domain.TargetID(id)
	return t, err
}

// ---- ResultStore ----

func (s *Store) AppendOutcome(ctx context.Context, o *domain.ProbeOutcome) error {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO probe_results (target_id, status_code, response_time_ms, dns_time_ms, error, ts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(o.TargetID), o.StatusCode, o.ResponseTimeMS, o.DNSTimeMS, o.Error, formatTS(o.Timestamp))
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	if o.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("outcome id: %w", err)
	}
	return nil
}

func (s *Store) AppendAlert(ctx context.Context, a *domain.Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (target_id, kind, message, ts) VALUES (?, ?, ?, ?)`,
		int64(a.TargetID), string(a.Kind), a.Message, formatTS(a.Timestamp))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("alert id: %w", err)
	}
	return nil
}

func (s *Store) RecentOutcomes(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeOutcome, error) {
	return s.queryOutcomes(ctx,
		`SELECT `+outcomeCols+` FROM probe_results WHERE target_id = ? ORDER BY id DESC LIMIT ?`,
		int64(id), limit)
}

func (s *Store) OutcomesSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.ProbeOutcome, error) {
	if id == repo.AllTargets {
		return s.queryOutcomes(ctx,
			`SELECT `+outcomeCols+` FROM probe_results WHERE ts >= ? ORDER BY ts, id`,
			formatTS(since))
	}
	return s.queryOutcomes(ctx,
		`SELECT `+outcomeCols+` FROM probe_results WHERE target_id = ? AND ts >= ? ORDER BY ts, id`,
		int64(id), formatTS(since))
}

func (s *Store) LatestOutcome(ctx context.Context, id domain.TargetID) (*domain.ProbeOutcome, error) {
	rows, err := s.RecentOutcomes(ctx, id, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (s *Store) LatestOutcomes(ctx context.Context) (map[domain.TargetID]domain.ProbeOutcome, error) {
	rows, err := s.queryOutcomes(ctx,
		`SELECT `+outcomeCols+` FROM probe_results
		  WHERE id IN (SELECT MAX(id) FROM probe_results GROUP BY target_id)`)
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
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.ProbeOutcome
	for rows.Next() {
		var (
			o        domain.ProbeOutcome
			targetID int64
			ts       string
			status   null.Int
			rt, dns  null.Float
		)
		if err := rows.Scan(&o.ID, &targetID, &status, &rt, &dns, &o.Error, &ts); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.TargetID = domain.TargetID(targetID)
		o.StatusCode, o.ResponseTimeMS, o.DNSTimeMS = status, rt, dns
		if o.Timestamp, err = parseTS(ts); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) RecentAlerts(ctx context.Context, id domain.TargetID, limit int) ([]domain.Alert, error) {
	if id == repo.AllTargets {
		return s.queryAlerts(ctx,
			`SELECT id, target_id, kind, message, ts FROM alerts ORDER BY id DESC LIMIT ?`, limit)
	}
	return s.queryAlerts(ctx,
		`SELECT id, target_id, kind, message, ts FROM alerts WHERE target_id = ? ORDER BY id DESC LIMIT ?`,
		int64(id), limit)
}

func (s *Store) AlertsSince(ctx context.Context, id domain.TargetID, since time.Time) ([]domain.Alert, error) {
	if id == repo.AllTargets {
		return s.queryAlerts(ctx,
			`SELECT id, target_id, kind, message, ts FROM alerts WHERE ts >= ? ORDER BY ts, id`,
			formatTS(since))
	}
	return s.queryAlerts(ctx,
		`SELECT id, target_id, kind, message, ts FROM alerts WHERE target_id = ? AND ts >= ? ORDER BY ts, id`,
		int64(id), formatTS(since))
}

func (s *Store) queryAlerts(ctx context.Context, q string, args ...any) ([]domain.Alert, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var (
			a        domain.Alert
			targetID int64
			kind, ts string
		)
		if err := rows.Scan(&a.ID, &targetID, &kind, &a.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.TargetID = domain.TargetID(targetID)
		a.Kind = domain.AlertKind(kind)
		if a.Timestamp, err = parseTS(ts); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTarget(ctx context.Context, id domain.TargetID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM probe_results WHERE target_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("delete outcomes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE target_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("delete alerts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM targets WHERE id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repo.ErrNotFound
	}
	return tx.Commit()
}

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) (time.Time, error) {
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ts %q: %w", s, err)
	}
	return t.UTC(), nil
}
