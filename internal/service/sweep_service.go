package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type reminderDispatcher interface {
	Dispatch(ctx context.Context, items []models.EnrollmentDetail, now time.Time) ReminderStats
}

type reportStore interface {
	Save(name string, data []byte) (string, error)
}

type linkSigner interface {
	Sign(name string) (string, time.Time, error)
}

// SweepConfig toggles optional sweep stages.
type SweepConfig struct {
	RemindersEnabled bool
	ReportsEnabled   bool
	// APIPrefix is used to build report download URLs.
	APIPrefix string
}

// SweepService runs the daily billing pass over every billable enrollment.
type SweepService struct {
	enrollments billableLister
	reminders   reminderDispatcher
	exporter    *ExportService
	reports     reportStore
	links       linkSigner
	metrics     *MetricsService
	cfg         SweepConfig
	logger      *zap.Logger

	running sync.Mutex
}

// NewSweepService wires sweep dependencies. reminders, reports and links may be nil when the
// corresponding stage is disabled.
func NewSweepService(enrollments billableLister, reminders reminderDispatcher, exporter *ExportService, reports reportStore, links linkSigner, metrics *MetricsService, cfg SweepConfig, logger *zap.Logger) *SweepService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exporter == nil {
		exporter = NewExportService(nil, nil)
	}
	return &SweepService{
		enrollments: enrollments,
		reminders:   reminders,
		exporter:    exporter,
		reports:     reports,
		links:       links,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run classifies every billable enrollment against the calendar day of now, queues reminders and
// stores the overdue report. now is captured once by the caller so every enrollment in the run is
// judged against the same day. Only one run executes at a time.
func (s *SweepService) Run(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	if !s.running.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "billing sweep already running")
	}
	defer s.running.Unlock()

	start := time.Now()
	result, err := s.run(ctx, now)
	s.metrics.ObserveSweep(result, time.Since(start), err)
	if err != nil {
		s.logger.Error("billing sweep failed", zap.Time("now", now), zap.Error(err))
		return nil, err
	}

	s.logger.Info("billing sweep completed",
		zap.String("date", result.Date),
		zap.Int("total", result.Total),
		zap.Int("active", result.Active),
		zap.Int("overdue", result.Overdue),
		zap.Any("reminders", result.Reminders),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (s *SweepService) run(ctx context.Context, now time.Time) (*dto.SweepResult, error) {
	items, err := s.enrollments.ListBillable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	summary := summarize(items, now)
	result := &dto.SweepResult{
		RunAt:     now,
		Date:      summary.Date,
		Total:     summary.Total,
		Active:    summary.Active,
		Overdue:   summary.Overdue,
		Reminders: map[string]int{},
	}

	if s.cfg.RemindersEnabled && s.reminders != nil {
		stats := s.reminders.Dispatch(ctx, items, now)
		result.Reminders = stats.Queued
		result.Skipped = stats.Skipped
	}

	if s.cfg.ReportsEnabled && s.reports != nil {
		if err := s.storeReport(result, items, now); err != nil {
			// A failed snapshot does not fail the sweep.
			s.logger.Warn("overdue report not stored", zap.String("date", result.Date), zap.Error(err))
		}
	}
	return result, nil
}

func (s *SweepService) storeReport(result *dto.SweepResult, items []models.EnrollmentDetail, now time.Time) error {
	report := &dto.OverdueReport{Date: result.Date, Items: overdueItems(items, now)}
	rendered, err := s.exporter.RenderOverdue(report, ReportFormatCSV)
	if err != nil {
		return fmt.Errorf("render overdue report: %w", err)
	}
	name, err := s.reports.Save("overdue/"+rendered.Filename, rendered.Data)
	if err != nil {
		return err
	}
	if s.links == nil {
		return nil
	}
	token, expiresAt, err := s.links.Sign(name)
	if err != nil {
		return err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.ReportURL = fmt.Sprintf("%s/reports/%s", prefix, token)
	result.ExpiresAt = &expiresAt
	return nil
}
