// Package stats aggregates probe outcomes into availability and latency
// figures for the dashboard and the performance report.
package stats

import (
	"math"
	"sort"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netdetective/internal/domain"
)

// Summary describes a set of outcomes. Ratios and latencies are null when
// there is nothing to aggregate.
type Summary struct {
	Total         int        `json:"total"`
	Successes     int        `json:"successes"`
	Failures      int        `json:"failures"`
	Availability  null.Float `json:"availability"`
	AvgResponseMS null.Float `json:"avg_response_time_ms"`
	P95ResponseMS null.Float `json:"p95_response_time_ms"`
}

func Summarize(outcomes []domain.ProbeOutcome) Summary {
	var (
		s     Summary
		times []float64
	)
	for _, o := range outcomes {
		s.Total++
		if o.Success() {
			s.Successes++
		}
		if o.ResponseTimeMS.Valid {
			times = append(times, o.ResponseTimeMS.Float64)
		}
	}
	s.Failures = s.Total - s.Successes
	if s.Total > 0 {
		s.Availability = null.FloatFrom(float64(s.Successes) / float64(s.Total))
	}
	if avg, ok := Mean(times); ok {
		s.AvgResponseMS = null.FloatFrom(avg)
	}
	if p95, ok := Percentile(times, 95); ok {
		s.P95ResponseMS = null.FloatFrom(p95)
	}
	return s
}

// Availability is the share of successful outcomes; false when empty.
func Availability(outcomes []domain.ProbeOutcome) (float64, bool) {
	if len(outcomes) == 0 {
		return 0, false
	}
	ok := 0
	for _, o := range outcomes {
		if o.Success() {
			ok++
		}
	}
	return float64(ok) / float64(len(outcomes)), true
}

func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// Percentile picks the sorted value at index round(pct/100 * (n-1)),
// rounding halves to even. values is not modified.
func Percentile(values []float64, pct float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := int(math.RoundToEven(pct / 100 * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx], true
}
