package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/config"
	"github.com/hamed0406/netdetective/internal/httpapi"
	"github.com/hamed0406/netdetective/internal/logging"
	"github.com/hamed0406/netdetective/internal/notify"
	"github.com/hamed0406/netdetective/internal/probe"
	"github.com/hamed0406/netdetective/internal/repo/store"
	"github.com/hamed0406/netdetective/internal/scheduler"
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
		logger.Error("api_exit", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, kind, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()
	logger.Info("store_ready", zap.String("backend", kind))

	if cfg.TargetsFile != "" {
		seeds, err := config.LoadSeedTargets(cfg.TargetsFile)
		if err != nil {
			return err
		}
		created, err := store.Seed(ctx, st, seeds)
		if err != nil {
			return err
		}
		logger.Info("targets_seeded", zap.String("file", cfg.TargetsFile), zap.Int("created", len(created)))
	}

	var sinks notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		sinks = append(sinks, s)
	}
	if cfg.NATSURL != "" {
		n, natsErr := notify.NewNATS(cfg.NATSURL, cfg.NATSSubject)
		if natsErr != nil {
			return natsErr
		}
		defer func() { err = multierr.Append(err, n.Close()) }()
		sinks = append(sinks, n)
	}
	logger.Info("notifiers_ready", zap.Int("sinks", len(sinks)))

	rules := scheduler.Rules{ThresholdMS: cfg.ThresholdMS, FailStreak: cfg.FailStreak}
	alerter := scheduler.NewAlerter(st, sinks, rules, logger)
	sched := scheduler.New(logger, probe.New(), st, alerter)

	targets, err := st.List(ctx)
	if err != nil {
		return err
	}
	if err := sched.Bootstrap(targets); err != nil {
		// bad targets are skipped; the rest keep running
		logger.Warn("bootstrap_partial", zap.Error(err))
	}

	api := httpapi.NewServer(logger, st, st, sched, httpapi.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		DashboardWindow: cfg.DashboardWindow,
		RateLimitPerMin: cfg.RateLimitPerMin,
		RateLimitBurst:  cfg.RateLimitBurst,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal")
	case err := <-serveErr:
		if err != nil {
			_ = sched.Shutdown(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = multierr.Combine(
		srv.Shutdown(shutdownCtx),
		sched.Shutdown(shutdownCtx),
	)
	logger.Info("api_stopped")
	return err
}
