package billing

import (
	"fmt"
	"time"
)

// ReminderKind identifies why a student is being reminded.
type ReminderKind string

// Reminder kinds.
const (
	ReminderDueSoon          ReminderKind = "due_soon"
	ReminderDueToday         ReminderKind = "due_today"
	ReminderOverdue          ReminderKind = "overdue"
	ReminderLessonsLow       ReminderKind = "lessons_low"
	ReminderLessonsExhausted ReminderKind = "lessons_exhausted"
)

// Reminder is a notification decision for one enrollment.
type Reminder struct {
	Kind             ReminderKind
	DueDate          time.Time
	Days             int
	LessonsRemaining int
	// Cycle pins the reminder to one billing cycle so repeated sweeps can detect duplicates.
	Cycle string
}

// Key identifies the reminder for deduplication.
func (r Reminder) Key() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Cycle)
}

// ReminderPolicy decides when to notify. It answers a different question than CheckStudentStatus
// and is kept separate from it.
type ReminderPolicy struct {
	LeadDays           int
	OverdueWindowDays  int
	LowLessonThreshold int
}

// DefaultReminderPolicy notifies 3 days ahead, on the due day, and for up to 10 days after.
func DefaultReminderPolicy() ReminderPolicy {
	return ReminderPolicy{LeadDays: 3, OverdueWindowDays: 10, LowLessonThreshold: 1}
}

// Evaluate returns the reminder due for the enrollment on the calendar day of now, if any.
func (p ReminderPolicy) Evaluate(enrollment StudentEnrollment, group GroupBillingConfig, now time.Time) (Reminder, bool) {
	switch group.PaymentType {
	case PaymentTypeMonthlyFixed, PaymentTypeMonthlyRolling:
		return p.evaluateMonthly(enrollment, now)
	case PaymentTypeLessonBased:
		return p.evaluateLessons(enrollment)
	default:
		return Reminder{}, false
	}
}

func (p ReminderPolicy) evaluateMonthly(enrollment StudentEnrollment, now time.Time) (Reminder, bool) {
	if enrollment.NextDueDate == nil {
		return Reminder{}, false
	}
	due := *enrollment.NextDueDate
	days := DaysUntil(due, now)
	reminder := Reminder{DueDate: due}

	switch {
	case days == 0:
		reminder.Kind = ReminderDueToday
	case p.LeadDays > 0 && days == p.LeadDays:
		reminder.Kind = ReminderDueSoon
		reminder.Days = days
	case days < 0 && -days <= p.OverdueWindowDays:
		reminder.Kind = ReminderOverdue
		reminder.Days = -days
	default:
		return Reminder{}, false
	}
	reminder.Cycle = fmt.Sprintf("%s:%d", due.Format("2006-01-02"), reminder.Days)
	return reminder, true
}

func (p ReminderPolicy) evaluateLessons(enrollment StudentEnrollment) (Reminder, bool) {
	remaining := lessonsRemaining(enrollment)
	reminder := Reminder{LessonsRemaining: remaining}
	switch {
	case remaining <= 0:
		reminder.Kind = ReminderLessonsExhausted
	case remaining <= p.LowLessonThreshold:
		reminder.Kind = ReminderLessonsLow
	default:
		return Reminder{}, false
	}

	// One reminder per kind per top-up: the last payment (or join) date marks the cycle.
	cycleStart := enrollment.JoinedAt
	if enrollment.LastPaymentDate != nil {
		cycleStart = *enrollment.LastPaymentDate
	}
	reminder.Cycle = cycleStart.Format("2006-01-02")
	return reminder, true
}
