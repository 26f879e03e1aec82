// Package app assembles the billing services from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/repository"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	"github.com/noah-isme/tutor-billing-api/pkg/cache"
	"github.com/noah-isme/tutor-billing-api/pkg/config"
	"github.com/noah-isme/tutor-billing-api/pkg/database"
	"github.com/noah-isme/tutor-billing-api/pkg/jobs"
	"github.com/noah-isme/tutor-billing-api/pkg/notify"
	"github.com/noah-isme/tutor-billing-api/pkg/storage"
)

// Options adjusts wiring for a particular entrypoint.
type Options struct {
	// DryRun logs reminders instead of sending them to Telegram.
	DryRun bool
}

// App holds every constructed service and the connections they share.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB      *sqlx.DB
	Redis   *redis.Client
	Storage *storage.LocalStorage

	Metrics     *service.MetricsService
	Cache       *service.CacheService
	Tokens      *service.TokenService
	Groups      *service.GroupService
	Students    *service.StudentService
	Enrollments *service.EnrollmentService
	Payments    *service.PaymentService
	Billing     *service.BillingService
	Export      *service.ExportService
	Reminders   *service.ReminderService
	Sweep       *service.SweepService
	Reports     *service.ReportService
}

// New connects to PostgreSQL (required) and Redis (optional) and wires the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, DB: db}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		} else {
			a.Redis = client
		}
	}

	validate := validator.New()
	a.Metrics = service.NewMetricsService()
	a.Cache = service.NewCacheService(repository.NewCacheRepository(a.Redis, logger), a.Metrics, cfg.Billing.SummaryCacheTTL, logger, a.Redis != nil)
	a.Tokens = service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	groupRepo := repository.NewGroupRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	a.Groups = service.NewGroupService(groupRepo, a.Cache, validate, logger)
	a.Students = service.NewStudentService(studentRepo, a.Cache, validate, logger)
	a.Enrollments = service.NewEnrollmentService(enrollmentRepo, studentRepo, groupRepo, a.Cache, validate, logger)
	a.Payments = service.NewPaymentService(paymentRepo, enrollmentRepo, db, a.Cache, a.Metrics, validate, logger)
	a.Billing = service.NewBillingService(enrollmentRepo, a.Cache, cfg.Billing.SummaryCacheTTL, logger)
	a.Export = service.NewExportService(nil, nil)

	gateway, err := newGateway(cfg.Telegram, opts.DryRun, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	policy := billing.ReminderPolicy{
		LeadDays:           cfg.Billing.ReminderLeadDays,
		OverdueWindowDays:  cfg.Billing.OverdueWindowDays,
		LowLessonThreshold: cfg.Billing.LowLessonThreshold,
	}
	a.Reminders = service.NewReminderService(policy, a.Cache, gateway, a.Metrics, service.ReminderConfig{
		DedupeTTL: cfg.Billing.ReminderDedupeTTL,
		Queue: jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
	}, logger)

	sweepCfg := service.SweepConfig{
		RemindersEnabled: cfg.Billing.RemindersEnabled,
		ReportsEnabled:   cfg.Reports.Enabled,
		APIPrefix:        cfg.APIPrefix,
	}
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open report storage: %w", err)
		}
		links := storage.NewLinkSigner(cfg.JWT.Secret, cfg.Reports.LinkTTL)
		a.Storage = store
		a.Sweep = service.NewSweepService(enrollmentRepo, a.Reminders, a.Export, store, links, a.Metrics, sweepCfg, logger)
		a.Reports = service.NewReportService(store, links, logger)
	} else {
		a.Sweep = service.NewSweepService(enrollmentRepo, a.Reminders, a.Export, nil, nil, a.Metrics, sweepCfg, logger)
		a.Reports = service.NewReportService(nil, nil, logger)
	}

	return a, nil
}

// Now returns the current instant in the billing timezone.
func (a *App) Now() time.Time {
	return time.Now().In(a.Config.Billing.Location())
}

// CleanupReports removes stored reports older than the configured retention.
func (a *App) CleanupReports(ctx context.Context, _ time.Time) error {
	if a.Storage == nil {
		return nil
	}
	removed, err := a.Storage.CleanupOlderThan(a.Config.Reports.Retention)
	if err != nil {
		return err
	}
	if len(removed) > 0 {
		a.Logger.Info("expired reports removed", zap.Int("count", len(removed)))
	}
	return nil
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

func newGateway(cfg config.TelegramConfig, dryRun bool, logger *zap.Logger) (notify.Gateway, error) {
	if dryRun || cfg.DryRun {
		return notify.NewLogGateway(logger), nil
	}
	if cfg.BotToken == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, reminders will only be logged")
		return notify.NewLogGateway(logger), nil
	}
	gateway, err := notify.NewTelegramGateway(cfg.BotToken, logger)
	if err != nil {
		return nil, err
	}
	return gateway, nil
}
