package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netdetective/internal/domain"
)

// Resolver is the address-lookup half of *net.Resolver.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// maxBody caps how much of a response body is drained before the exchange
// counts as complete.
const maxBody = 1 << 20

// Prober performs one DNS + HTTP GET measurement against a target.
// It never persists anything and is safe for concurrent use.
type Prober struct {
	Resolver Resolver
	Client   *http.Client
	Now      func() time.Time
}

func New() *Prober {
	return &Prober{
		Resolver: net.DefaultResolver,
		// Deadlines come from the per-target context, not the client.
		Client: &http.Client{},
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Probe measures target once. Network problems are reported inside the
// outcome; the error is non-nil only for a target that fails validation.
func (p *Prober) Probe(ctx context.Context, t domain.Target) (domain.ProbeOutcome, error) {
	if err := t.Validate(); err != nil {
		return domain.ProbeOutcome{}, err
	}
	out := p.measure(ctx, t)
	out.Timestamp = p.now()
	return out, nil
}

func (p *Prober) measure(ctx context.Context, t domain.Target) domain.ProbeOutcome {
	out := domain.ProbeOutcome{TargetID: t.ID}

	host := hostname(t.URL)
	if host == "" {
		out.Error = "DNS error: missing hostname"
		return out
	}

	dnsMS, err := p.resolve(ctx, host, t.Timeout())
	if err != nil {
		out.Error = "DNS error: " + err.Error()
		return out
	}
	out.DNSTimeMS = null.FloatFrom(dnsMS)

	status, rtMS, err := p.get(ctx, t.URL, t.Timeout())
	out.ResponseTimeMS = null.FloatFrom(rtMS)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StatusCode = null.IntFrom(int64(status))
	if !domain.IsSuccess(out.StatusCode, "") {
		out.Error = fmt.Sprintf("HTTP %d", status)
	}
	return out
}

func (p *Prober) resolve(ctx context.Context, host string, timeout time.Duration) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := p.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	start := time.Now()
	addrs, err := r.LookupHost(ctx, host)
	elapsed := millis(time.Since(start))
	if err != nil {
		return elapsed, err
	}
	if len(addrs) == 0 {
		return elapsed, fmt.Errorf("no addresses for %s", host)
	}
	return elapsed, nil
}

func (p *Prober) get(ctx context.Context, rawURL string, timeout time.Duration) (int, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, millis(time.Since(start)), err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, millis(time.Since(start)), err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	return resp.StatusCode, millis(time.Since(start)), nil
}

func (p *Prober) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func millis(d time.Duration) float64 { return d.Seconds() * 1000 }
