package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/pkg/jobs"
	"github.com/noah-isme/tutor-billing-api/pkg/notify"
)

const reminderJobType = "payment_reminder"

type reminderClaimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ReminderConfig tunes reminder delivery.
type ReminderConfig struct {
	DedupeTTL time.Duration
	Queue     jobs.QueueConfig
}

// ReminderMessage is the payload of a queued reminder.
type ReminderMessage struct {
	EnrollmentID string
	ChatID       int64
	Kind         billing.ReminderKind
	Text         string
}

// ReminderStats reports what a dispatch pass did.
type ReminderStats struct {
	Queued  map[string]int
	Skipped int
}

// ReminderService decides which students to remind and delivers reminders in the background.
type ReminderService struct {
	policy    billing.ReminderPolicy
	claims    reminderClaimer
	gateway   notify.Gateway
	queue     *jobs.Queue
	metrics   *MetricsService
	dedupeTTL time.Duration
	logger    *zap.Logger
}

// NewReminderService constructs the service and its delivery queue. Call Start before Dispatch.
func NewReminderService(policy billing.ReminderPolicy, claims reminderClaimer, gateway notify.Gateway, metrics *MetricsService, cfg ReminderConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = 30 * 24 * time.Hour
	}
	if cfg.Queue.Logger == nil {
		cfg.Queue.Logger = logger
	}
	s := &ReminderService{
		policy:    policy,
		claims:    claims,
		gateway:   gateway,
		metrics:   metrics,
		dedupeTTL: cfg.DedupeTTL,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("reminders", s.deliver, cfg.Queue)
	return s
}

// Start launches delivery workers.
func (s *ReminderService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop halts delivery workers. Reminders still buffered are dropped.
func (s *ReminderService) Stop() {
	s.queue.Stop()
}

// Drain waits until every queued reminder has been delivered or given up on.
func (s *ReminderService) Drain(ctx context.Context) error {
	return s.queue.Drain(ctx)
}

// Dispatch evaluates the reminder policy for each enrollment on the calendar day of now and queues
// the reminders that have not already been sent for the current billing cycle.
func (s *ReminderService) Dispatch(ctx context.Context, items []models.EnrollmentDetail, now time.Time) ReminderStats {
	stats := ReminderStats{Queued: map[string]int{}}
	for _, item := range items {
		reminder, ok := s.policy.Evaluate(item.Snapshot(), item.BillingConfig(), now)
		if !ok {
			continue
		}
		kind := string(reminder.Kind)
		if item.StudentTelegramID == nil {
			stats.Skipped++
			s.metrics.RecordReminder(kind, "no_chat")
			continue
		}

		key := fmt.Sprintf("reminder:%s:%s", item.ID, reminder.Key())
		claimed, err := s.claims.Claim(ctx, key, s.dedupeTTL)
		if err != nil {
			s.logger.Warn("reminder dedupe unavailable, sending anyway", zap.String("key", key), zap.Error(err))
			claimed = true
		}
		if !claimed {
			stats.Skipped++
			s.metrics.RecordReminder(kind, "skipped")
			continue
		}

		msg := ReminderMessage{
			EnrollmentID: item.ID,
			ChatID:       *item.StudentTelegramID,
			Kind:         reminder.Kind,
			Text:         FormatReminder(item, reminder),
		}
		if err := s.queue.Enqueue(jobs.Job{ID: key, Type: reminderJobType, Payload: msg}); err != nil {
			s.logger.Error("failed to queue reminder", zap.String("key", key), zap.Error(err))
			if releaseErr := s.claims.Release(ctx, key); releaseErr != nil {
				s.logger.Warn("failed to release reminder claim", zap.String("key", key), zap.Error(releaseErr))
			}
			s.metrics.RecordReminder(kind, "failed")
			continue
		}
		stats.Queued[kind]++
		s.metrics.RecordReminder(kind, "queued")
	}
	return stats
}

func (s *ReminderService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(ReminderMessage)
	if !ok {
		s.logger.Error("unexpected reminder payload", zap.String("job_id", job.ID))
		return nil
	}
	err := s.gateway.Send(ctx, msg.ChatID, msg.Text)
	switch {
	case err == nil:
		s.metrics.RecordReminder(string(msg.Kind), "sent")
		return nil
	case errors.Is(err, notify.ErrUndeliverable):
		s.metrics.RecordReminder(string(msg.Kind), "undeliverable")
		s.logger.Warn("reminder undeliverable",
			zap.String("enrollment_id", msg.EnrollmentID),
			zap.Int64("chat_id", msg.ChatID),
			zap.Error(err),
		)
		return nil
	default:
		return err
	}
}

// FormatReminder renders the Telegram message for a reminder. Output is Telegram HTML.
func FormatReminder(item models.EnrollmentDetail, reminder billing.Reminder) string {
	student := html.EscapeString(item.StudentName)
	group := html.EscapeString(item.GroupName)
	due := reminder.DueDate.Format("02 Jan 2006")
	price := item.Price.StringFixed(0)

	switch reminder.Kind {
	case billing.ReminderDueSoon:
		return fmt.Sprintf("<b>Payment reminder</b>\n%s, tuition for <b>%s</b> (%s) is due on %s, in %d days.", student, group, price, due, reminder.Days)
	case billing.ReminderDueToday:
		return fmt.Sprintf("<b>Payment due today</b>\n%s, tuition for <b>%s</b> (%s) is due today, %s.", student, group, price, due)
	case billing.ReminderOverdue:
		return fmt.Sprintf("<b>Payment overdue</b>\n%s, tuition for <b>%s</b> (%s) was due on %s and is %s overdue.", student, group, price, due, plural(reminder.Days, "day"))
	case billing.ReminderLessonsLow:
		return fmt.Sprintf("<b>Lessons running out</b>\n%s, you have %s left in <b>%s</b>. Please top up to keep your place.", student, plural(reminder.LessonsRemaining, "lesson"), group)
	case billing.ReminderLessonsExhausted:
		return fmt.Sprintf("<b>No lessons left</b>\n%s, your lessons in <b>%s</b> are used up. Please top up before the next lesson.", student, group)
	default:
		return fmt.Sprintf("%s, please check your tuition for <b>%s</b>.", student, group)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
