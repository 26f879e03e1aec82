// Command billing-sweep runs one billing sweep and exits. It is meant for cron jobs and backfills
// where the API's built-in scheduler is disabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/app"
	"github.com/noah-isme/tutor-billing-api/pkg/config"
	"github.com/noah-isme/tutor-billing-api/pkg/logger"
)

func main() {
	date := flag.String("date", "", "billing date as YYYY-MM-DD in the billing timezone (default today)")
	dryRun := flag.Bool("dry-run", false, "log reminders instead of sending them")
	drainTimeout := flag.Duration("drain-timeout", 2*time.Minute, "how long to wait for queued reminders")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	now, err := sweepTime(*date, cfg.Billing.Location(), time.Now())
	if err != nil {
		logr.Fatal("invalid -date", zap.String("date", *date), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logr, app.Options{DryRun: *dryRun})
	if err != nil {
		logr.Fatal("failed to initialise application", zap.Error(err))
	}
	defer a.Close()

	a.Reminders.Start(ctx)
	defer a.Reminders.Stop()

	result, err := a.Sweep.Run(ctx, now)
	if err != nil {
		logr.Error("billing sweep failed", zap.Error(err))
		os.Exit(1)
	}

	drainCtx, cancel := context.WithTimeout(ctx, *drainTimeout)
	defer cancel()
	if err := a.Reminders.Drain(drainCtx); err != nil {
		logr.Warn("pending reminders not delivered", zap.Error(err))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logr.Error("failed to write result", zap.Error(err))
	}
}

// sweepTime resolves the instant the sweep judges enrollments against. An explicit date keeps
// the current time of day so reminder keys match a scheduled run on that date.
func sweepTime(date string, loc *time.Location, now time.Time) (time.Time, error) {
	now = now.In(loc)
	if date == "" {
		return now, nil
	}
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, loc), nil
}
