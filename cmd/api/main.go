package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/app"
	"github.com/noah-isme/tutor-billing-api/pkg/config"
	"github.com/noah-isme/tutor-billing-api/pkg/logger"
	"github.com/noah-isme/tutor-billing-api/pkg/scheduler"
)

// @title Tutor Billing API
// @version 1.0.0
// @description Payment cycles, reminders and overdue reports for a tutoring center.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logr, app.Options{})
	if err != nil {
		logr.Fatal("failed to initialise application", zap.Error(err))
	}
	defer a.Close()

	a.Reminders.Start(context.Background())

	sched := scheduler.New(cfg.Billing.Location(), logr)
	if cfg.Billing.SweepEnabled {
		if err := sched.Register("billing-sweep", cfg.Billing.SweepSchedule, func(ctx context.Context, now time.Time) error {
			_, err := a.Sweep.Run(ctx, now)
			return err
		}); err != nil {
			logr.Fatal("failed to schedule billing sweep", zap.Error(err))
		}
	}
	if cfg.Reports.Enabled {
		if err := sched.Register("report-cleanup", "30 3 * * *", a.CleanupReports); err != nil {
			logr.Fatal("failed to schedule report cleanup", zap.Error(err))
		}
	}
	sched.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "timezone", cfg.Billing.Location().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	if err := a.Reminders.Drain(shutdownCtx); err != nil {
		logr.Warn("pending reminders not delivered", zap.Error(err))
	}
	a.Reminders.Stop()
}
