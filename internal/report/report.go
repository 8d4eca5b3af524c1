// Package report renders the markdown performance report.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
	"github.com/hamed0406/netdetective/internal/stats"
)

const DefaultPath = "reports/performance_report.md"

const conclusion = "Conclusion: Basic SLA metrics captured for configured targets."

// Row is one target's line in the report.
type Row struct {
	Target domain.Target
	stats.Summary
	Alerts int
}

// Collect aggregates every target's outcomes and alerts recorded at or
// after since. A zero since covers the whole history.
func Collect(ctx context.Context, targets repo.TargetStore, results repo.ResultStore, since time.Time) ([]Row, error) {
	ts, err := targets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	outcomes, err := results.OutcomesSince(ctx, repo.AllTargets, since)
	if err != nil {
		return nil, fmt.Errorf("read outcomes: %w", err)
	}
	alerts, err := results.AlertsSince(ctx, repo.AllTargets, since)
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}

	byTarget := make(map[domain.TargetID][]domain.ProbeOutcome)
	for _, o := range outcomes {
		byTarget[o.TargetID] = append(byTarget[o.TargetID], o)
	}
	alertCount := make(map[domain.TargetID]int)
	for _, a := range alerts {
		alertCount[a.TargetID]++
	}

	rows := make([]Row, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, Row{
			Target:  t,
			Summary: stats.Summarize(byTarget[t.ID]),
			Alerts:  alertCount[t.ID],
		})
	}
	return rows, nil
}

// Markdown writes the report table followed by the conclusion line.
func Markdown(w io.Writer, rows []Row) error {
	var b strings.Builder
	b.WriteString("# Performance Report\n\n")
	b.WriteString("| Target | Availability | Avg (ms) | P95 (ms) | Failures | Alerts |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d |\n",
			r.Target.Name,
			percent(r.Availability),
			millis(r.AvgResponseMS),
			millis(r.P95ResponseMS),
			r.Failures,
			r.Alerts,
		)
	}
	b.WriteString("\n" + conclusion)
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFile renders rows to path, creating parent directories.
func WriteFile(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Markdown(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func percent(v null.Float) string {
	if !v.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", v.Float64*100)
}

func millis(v null.Float) string {
	if !v.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", v.Float64)
}
