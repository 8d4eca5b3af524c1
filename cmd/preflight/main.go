// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/config"
	"github.com/hamed0406/netdetective/internal/notify"
	"github.com/hamed0406/netdetective/internal/repo/store"
)

func main() {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg := config.FromEnv()
	for _, err := range multierr.Errors(cfg.Validate()) {
		fail(err.Error())
	}
	if failed {
		os.Exit(1)
	}
	ok(fmt.Sprintf("THRESHOLD_MS=%d FAIL_N=%d", cfg.ThresholdMS, cfg.FailStreak))

	if strings.HasPrefix(cfg.Addr, ":") || strings.HasPrefix(cfg.Addr, "0.0.0.0") {
		warn("API_ADDR=" + cfg.Addr + " listens on all interfaces.")
	} else {
		ok("API_ADDR=" + cfg.Addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, kind, err := store.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		fail(err.Error())
	} else {
		n := 0
		if ts, err := st.List(ctx); err != nil {
			fail("store reachable but unreadable: " + err.Error())
		} else {
			n = len(ts)
		}
		_ = st.Close()
		ok(fmt.Sprintf("%s store ready (%d targets)", kind, n))
	}

	if cfg.TargetsFile != "" {
		if seeds, err := config.LoadSeedTargets(cfg.TargetsFile); err != nil {
			fail(err.Error())
		} else {
			ok(fmt.Sprintf("TARGETS_FILE=%s (%d targets)", cfg.TargetsFile, len(seeds)))
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; every origin is allowed by CORS.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.RateLimitPerMin == 0 {
		warn("RATE_LIMIT_PER_MIN=0; target mutations are not rate limited.")
	}

	if cfg.SlackWebhook == "" && cfg.NATSURL == "" {
		warn("No SLACK_WEBHOOK_URL or NATS_URL; alerts go to logs only.")
	}
	if cfg.NATSURL != "" {
		n, err := notify.NewNATS(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			fail(err.Error())
		} else {
			_ = n.Close()
			ok("NATS reachable, subject " + cfg.NATSSubject)
		}
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
