package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/config"
	"github.com/hamed0406/netdetective/internal/logging"
	"github.com/hamed0406/netdetective/internal/report"
	"github.com/hamed0406/netdetective/internal/repo/store"
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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, _, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer st.Close()

	rows, err := report.Collect(ctx, st, st, time.Time{})
	if err != nil {
		logger.Fatal("report_collect_error", zap.Error(err))
	}
	if err := report.WriteFile(report.DefaultPath, rows); err != nil {
		logger.Fatal("report_write_error", zap.Error(err))
	}
	logger.Info("report_written", zap.String("path", report.DefaultPath), zap.Int("targets", len(rows)))
	fmt.Println("Report written to", report.DefaultPath)
}
