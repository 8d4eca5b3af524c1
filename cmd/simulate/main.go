// Command simulate registers a target nobody listens on, lets the scheduler
// probe it for three intervals and prints the alerts that fired.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/config"
	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/logging"
	"github.com/hamed0406/netdetective/internal/probe"
	"github.com/hamed0406/netdetective/internal/repo/store"
	"github.com/hamed0406/netdetective/internal/scheduler"
)

const (
	unreachableURL = "http://127.0.0.1:1"
	intervalSec    = 5
	timeoutSec     = 2
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("simulate_error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()
	st, _, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	t := domain.Target{
		Name:        fmt.Sprintf("simulated-unreachable-%d", time.Now().Unix()),
		URL:         unreachableURL,
		IntervalSec: intervalSec,
		TimeoutSec:  timeoutSec,
		Enabled:     true,
	}
	if err := st.Create(ctx, &t); err != nil {
		return fmt.Errorf("create target: %w", err)
	}

	rules := scheduler.Rules{ThresholdMS: cfg.ThresholdMS, FailStreak: cfg.FailStreak}
	sched := scheduler.New(logger, probe.New(), st, scheduler.NewAlerter(st, nil, rules, logger))
	if err := sched.Upsert(t); err != nil {
		return err
	}

	// three fires plus room for the last probe to time out
	wait := 3*t.Interval() + t.Timeout() + time.Second
	fmt.Printf("Probing %s every %ds, waiting %s...\n", t.URL, t.IntervalSec, wait)
	time.Sleep(wait)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		return err
	}

	outcomes, err := st.RecentOutcomes(ctx, t.ID, 10)
	if err != nil {
		return err
	}
	alerts, err := st.RecentAlerts(ctx, t.ID, 50)
	if err != nil {
		return err
	}

	fmt.Printf("Target %d recorded %d outcomes and %d alerts\n", t.ID, len(outcomes), len(alerts))
	for i := len(alerts) - 1; i >= 0; i-- {
		a := alerts[i]
		fmt.Printf("  %s  %-18s %s\n", a.Timestamp.Format(time.RFC3339), a.Kind, a.Message)
	}
	return nil
}
