package stats

import (
	"math"
	"testing"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netdetective/internal/domain"
)

func TestPercentile(t *testing.T) {
	cases := []struct {
		name   string
		values []float64
		pct    float64
		want   float64
	}{
		{"single", []float64{42}, 95, 42},
		{"unsorted input", []float64{5, 1, 4, 2, 3}, 50, 3},
		{"p95 of 1..20", seq(20), 95, 19},      // round(18.05) = 18 -> 19
		{"p95 of 1..10", seq(10), 95, 10},      // round(8.55) = 9 -> 10
		{"half rounds to even", seq(4), 50, 3}, // round(1.5) = 2 -> 3
		{"p50 of 1..6", seq(6), 50, 3},         // round(2.5) = 2 -> 3
		{"p0", seq(10), 0, 1},
		{"p100", seq(10), 100, 10},
	}
	for _, tc := range cases {
		got, ok := Percentile(tc.values, tc.pct)
		if !ok || got != tc.want {
			t.Fatalf("%s: want %v, got %v (ok=%v)", tc.name, tc.want, got, ok)
		}
	}
	if _, ok := Percentile(nil, 95); ok {
		t.Fatalf("empty input should report !ok")
	}
}

func TestPercentile_DoesNotReorderInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, _ = Percentile(in, 50)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("input modified: %v", in)
	}
}

func TestMean(t *testing.T) {
	if got, ok := Mean([]float64{1, 2, 3, 4}); !ok || got != 2.5 {
		t.Fatalf("want 2.5, got %v", got)
	}
	if _, ok := Mean(nil); ok {
		t.Fatalf("empty mean should report !ok")
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []domain.ProbeOutcome{
		{StatusCode: null.IntFrom(200), ResponseTimeMS: null.FloatFrom(100)},
		{StatusCode: null.IntFrom(301), ResponseTimeMS: null.FloatFrom(200)},
		{StatusCode: null.IntFrom(500), ResponseTimeMS: null.FloatFrom(300), Error: "HTTP 500"},
		{Error: "DNS error: no such host"},
	}
	s := Summarize(outcomes)
	if s.Total != 4 || s.Successes != 2 || s.Failures != 2 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if s.Availability.Float64 != 0.5 {
		t.Fatalf("availability = %v", s.Availability)
	}
	if s.AvgResponseMS.Float64 != 200 {
		t.Fatalf("avg = %v", s.AvgResponseMS)
	}
	if s.P95ResponseMS.Float64 != 300 {
		t.Fatalf("p95 = %v", s.P95ResponseMS)
	}

	a, ok := Availability(outcomes)
	if !ok || math.Abs(a-0.5) > 1e-9 {
		t.Fatalf("Availability = %v", a)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Total != 0 || s.Availability.Valid || s.AvgResponseMS.Valid || s.P95ResponseMS.Valid {
		t.Fatalf("empty summary should be all null: %+v", s)
	}
}

func seq(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}
