// Package billing computes tuition due dates and classifies enrollments as active or overdue.
//
// Every function here is pure: inputs are treated as immutable snapshots, nothing reads a clock,
// and the package holds no state, so it is safe to call from any number of goroutines. Callers
// that judge a batch of enrollments must capture "now" once and pass the same value to every call.
package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType identifies the billing model of a group.
type PaymentType string

// Supported billing models.
const (
	PaymentTypeMonthlyFixed   PaymentType = "monthly_fixed"
	PaymentTypeMonthlyRolling PaymentType = "monthly_rolling"
	PaymentTypeLessonBased    PaymentType = "lesson_based"
)

// Valid reports whether the payment type is one of the supported billing models.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentTypeMonthlyFixed, PaymentTypeMonthlyRolling, PaymentTypeLessonBased:
		return true
	default:
		return false
	}
}

// Monthly reports whether the payment type is billed against a calendar due date.
func (p PaymentType) Monthly() bool {
	return p == PaymentTypeMonthlyFixed || p == PaymentTypeMonthlyRolling
}

// Status is the billing state of an enrollment at a point in time.
type Status string

// Possible enrollment billing states.
const (
	StatusActive  Status = "active"
	StatusOverdue Status = "overdue"
)

// Anchor day bounds for monthly_rolling groups.
const (
	MinAnchorDay = 1
	MaxAnchorDay = 31
)

// ErrInvalidAnchorDay is returned by ValidateAnchorDay for days outside [1, 31].
var ErrInvalidAnchorDay = errors.New("anchor day must be between 1 and 31")

// GroupBillingConfig is the billing configuration of a group.
type GroupBillingConfig struct {
	PaymentType PaymentType
	// Price is informational; no date arithmetic depends on it.
	Price decimal.Decimal
}

// StudentEnrollment is a point-in-time snapshot of a student's membership in a group.
type StudentEnrollment struct {
	JoinedAt         time.Time
	AnchorDay        *int
	LessonsRemaining *int
	NextDueDate      *time.Time
	LastPaymentDate  *time.Time
}

// ValidateAnchorDay checks that day is a usable anchor. The calculators below never call it;
// boundary code (request validation, persistence) does.
func ValidateAnchorDay(day int) error {
	if day < MinAnchorDay || day > MaxAnchorDay {
		return ErrInvalidAnchorDay
	}
	return nil
}

// CalculateNextDueDate advances currentDueDate into the following calendar month and pins it to
// anchorDay. When the anchor does not exist in that month the result snaps back to the month's
// last day; it never rolls over into the month after. anchorDay is not validated.
func CalculateNextDueDate(currentDueDate time.Time, anchorDay int) time.Time {
	year, month, _ := currentDueDate.Date()
	loc := currentDueDate.Location()

	// Build from the 1st so that Jan 31 lands in February, not March.
	target := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)

	day := anchorDay
	if last := DaysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, loc)
}

// CalculateInitialDueDate returns the first due date for a new enrollment.
//
// For lesson_based (and any unsupported type) there is no due date: the zero time.Time is
// returned and callers must treat it as absent (check IsZero) rather than persist it.
func CalculateInitialDueDate(joinDate time.Time, paymentType PaymentType, anchorDay *int) time.Time {
	switch paymentType {
	case PaymentTypeMonthlyFixed:
		year, month, _ := joinDate.Date()
		return time.Date(year, month+1, 1, 0, 0, 0, 0, joinDate.Location())
	case PaymentTypeMonthlyRolling:
		anchor := joinDate.Day()
		if anchorDay != nil {
			anchor = *anchorDay
		}
		return CalculateNextDueDate(joinDate, anchor)
	default:
		return time.Time{}
	}
}

// CheckStudentStatus classifies an enrollment against the calendar day of now.
//
// Monthly groups are overdue only once the due date is strictly before today; an enrollment
// that was never billed is active. Lesson-based enrollments are overdue when no lessons remain,
// and a missing counter counts as zero. Unknown payment types fail open to active.
func CheckStudentStatus(enrollment StudentEnrollment, group GroupBillingConfig, now time.Time) Status {
	switch group.PaymentType {
	case PaymentTypeMonthlyFixed, PaymentTypeMonthlyRolling:
		if enrollment.NextDueDate == nil {
			return StatusActive
		}
		if civilDate(*enrollment.NextDueDate).Before(civilDate(now)) {
			return StatusOverdue
		}
		return StatusActive
	case PaymentTypeLessonBased:
		if lessonsRemaining(enrollment) <= 0 {
			return StatusOverdue
		}
		return StatusActive
	default:
		return StatusActive
	}
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysUntil returns the number of calendar days from now to date. Negative values mean date
// is in the past.
func DaysUntil(date, now time.Time) int {
	return int(civilDate(date).Sub(civilDate(now)).Hours() / 24)
}

// civilDate keeps only the year, month and day of t as seen in t's own location.
func civilDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lessonsRemaining(enrollment StudentEnrollment) int {
	if enrollment.LessonsRemaining == nil {
		return 0
	}
	return *enrollment.LessonsRemaining
}
