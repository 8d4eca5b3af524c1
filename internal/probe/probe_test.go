package probe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/netdetective/internal/domain"
)

// fake resolver you can control
type fakeResolver struct {
	addrs []string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.addrs, f.err
}

var fixed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newProber(r Resolver) *Prober {
	p := New()
	p.Resolver = r
	p.Now = func() time.Time { return fixed }
	return p
}

func target(url string) domain.Target {
	return domain.Target{ID: 7, Name: "t", URL: url, IntervalSec: 60, TimeoutSec: 2, Enabled: true}
}

func TestProbe_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("want GET, got %s", r.Method)
		}
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out, err := newProber(&fakeResolver{addrs: []string{"127.0.0.1"}}).Probe(context.Background(), target(s.URL))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !out.Success() || out.Error != "" {
		t.Fatalf("want success, got %+v", out)
	}
	if out.StatusCode.Int64 != 200 || !out.ResponseTimeMS.Valid || !out.DNSTimeMS.Valid {
		t.Fatalf("fields not recorded: %+v", out)
	}
	if out.ResponseTimeMS.Float64 < 0 || out.DNSTimeMS.Float64 < 0 {
		t.Fatalf("negative timings: %+v", out)
	}
	if out.TargetID != 7 || !out.Timestamp.Equal(fixed) {
		t.Fatalf("target/timestamp wrong: %+v", out)
	}
}

func TestProbe_Status500(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out, _ := newProber(&fakeResolver{addrs: []string{"127.0.0.1"}}).Probe(context.Background(), target(s.URL))
	if out.Success() {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.StatusCode.Int64 != 500 || out.Error != "HTTP 500" {
		t.Fatalf("want status 500 and HTTP 500, got %+v", out)
	}
}

func TestProbe_RedirectTerminalStatusCounts(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer s.Close()

	out, _ := newProber(&fakeResolver{addrs: []string{"127.0.0.1"}}).Probe(context.Background(), target(s.URL))
	if !out.Success() || out.StatusCode.Int64 != 304 {
		t.Fatalf("304 should be success, got %+v", out)
	}
}

func TestProbe_TimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer s.Close()
	defer close(release)

	tg := target(s.URL)
	tg.TimeoutSec = 1
	out, err := newProber(&fakeResolver{addrs: []string{"127.0.0.1"}}).Probe(context.Background(), tg)
	if err != nil {
		t.Fatalf("network failure must not be an error: %v", err)
	}
	if out.StatusCode.Valid {
		t.Fatalf("status should be absent on transport error: %+v", out)
	}
	if out.Error == "" || !out.ResponseTimeMS.Valid || out.ResponseTimeMS.Float64 < 900 {
		t.Fatalf("want error and ~1s response time, got %+v", out)
	}
}

func TestProbe_ConnectionRefused(t *testing.T) {
	s := httptest.NewServer(http.NotFoundHandler())
	url := s.URL
	s.Close()

	out, _ := newProber(&fakeResolver{addrs: []string{"127.0.0.1"}}).Probe(context.Background(), target(url))
	if out.Success() || out.StatusCode.Valid || out.Error == "" {
		t.Fatalf("want transport failure, got %+v", out)
	}
	if !out.ResponseTimeMS.Valid || !out.DNSTimeMS.Valid {
		t.Fatalf("timings should still be recorded: %+v", out)
	}
}

func TestProbe_DNSFailureSkipsHTTP(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer s.Close()

	r := &fakeResolver{err: errors.New("no such host")}
	out, _ := newProber(r).Probe(context.Background(), target(s.URL))
	if out.Error != "DNS error: no such host" {
		t.Fatalf("error = %q", out.Error)
	}
	if out.StatusCode.Valid || out.ResponseTimeMS.Valid || out.DNSTimeMS.Valid {
		t.Fatalf("nothing should be recorded after DNS failure: %+v", out)
	}
	if hits.Load() != 0 {
		t.Fatalf("HTTP step ran after DNS failure")
	}
}

func TestProbe_DNSBoundedByTargetTimeout(t *testing.T) {
	r := &fakeResolver{addrs: []string{"127.0.0.1"}, delay: 10 * time.Second}
	tg := target("http://slow-dns.test/")
	tg.TimeoutSec = 1

	start := time.Now()
	out, _ := newProber(r).Probe(context.Background(), tg)
	if time.Since(start) > 5*time.Second {
		t.Fatalf("DNS lookup not bounded by timeout")
	}
	if !strings.HasPrefix(out.Error, "DNS error: ") {
		t.Fatalf("want DNS error, got %+v", out)
	}
}

func TestProbe_MissingHostname(t *testing.T) {
	r := &fakeResolver{addrs: []string{"127.0.0.1"}}
	for _, u := range []string{"not a url", "http://", "::bad"} {
		out, err := newProber(r).Probe(context.Background(), target(u))
		if err != nil {
			t.Fatalf("%q: unexpected error %v", u, err)
		}
		if out.Error != "DNS error: missing hostname" {
			t.Fatalf("%q: error = %q", u, out.Error)
		}
		if out.StatusCode.Valid || out.ResponseTimeMS.Valid {
			t.Fatalf("%q: no HTTP fields expected: %+v", u, out)
		}
	}
	if r.calls.Load() != 0 {
		t.Fatalf("resolver should not be consulted without a hostname")
	}
}

func TestProbe_InvalidTargetIsError(t *testing.T) {
	tg := target("http://x.test")
	tg.TimeoutSec = 0
	if _, err := newProber(&fakeResolver{}).Probe(context.Background(), tg); !errors.Is(err, domain.ErrInvalidTarget) {
		t.Fatalf("want ErrInvalidTarget, got %v", err)
	}
}
