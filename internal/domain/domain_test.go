package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v5"
)

func TestIsSuccess(t *testing.T) {
	cases := []struct {
		status null.Int
		err    string
		want   bool
	}{
		{null.IntFrom(200), "", true},
		{null.IntFrom(301), "", true},
		{null.IntFrom(399), "", true},
		{null.IntFrom(199), "", false},
		{null.IntFrom(400), "", false},
		{null.IntFrom(500), "", false},
		{null.Int{}, "", false},
		{null.Int{}, "DNS error: missing hostname", false},
	}
	for _, c := range cases {
		if got := IsSuccess(c.status, c.err); got != c.want {
			t.Fatalf("IsSuccess(%v, %q)=%v want %v", c.status, c.err, got, c.want)
		}
	}
}

// Any populated error wins over an in-range status code.
func TestIsSuccess_ErrorAlwaysFails(t *testing.T) {
	for code := int64(200); code <= 399; code++ {
		o := ProbeOutcome{StatusCode: null.IntFrom(code), Error: "boom"}
		if o.Success() {
			t.Fatalf("status %d with error classified success", code)
		}
	}
}

func TestTarget_Validate(t *testing.T) {
	ok := Target{Name: "a", URL: "https://example.com", IntervalSec: 5, TimeoutSec: 2, Enabled: true}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid target rejected: %v", err)
	}

	bad := []Target{
		{URL: "https://example.com", IntervalSec: 5, TimeoutSec: 2},
		{Name: "a", IntervalSec: 5, TimeoutSec: 2},
		{Name: "a", URL: "https://example.com", IntervalSec: 0, TimeoutSec: 2},
		{Name: "a", URL: "https://example.com", IntervalSec: 5, TimeoutSec: 0},
	}
	for _, b := range bad {
		if err := b.Validate(); !errors.Is(err, ErrInvalidTarget) {
			t.Fatalf("want ErrInvalidTarget for %+v, got %v", b, err)
		}
	}

	// an unparseable URL is not a definition error
	odd := ok
	odd.URL = "::not a url"
	if err := odd.Validate(); err != nil {
		t.Fatalf("url syntax should not be validated here: %v", err)
	}
}

func TestProbeOutcome_JSONNulls(t *testing.T) {
	o := ProbeOutcome{
		TargetID:  1,
		Error:     "DNS error: no such host",
		Timestamp: time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"status_code", "response_time_ms", "dns_time_ms"} {
		if v, ok := m[k]; !ok || v != nil {
			t.Fatalf("%s should be null, got %v", k, v)
		}
	}
}
