package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
)

// Enrollment captures a student's membership in a group and its billing cursor.
type Enrollment struct {
	ID               string     `db:"id" json:"id"`
	StudentID        string     `db:"student_id" json:"student_id"`
	GroupID          string     `db:"group_id" json:"group_id"`
	JoinedAt         time.Time  `db:"joined_at" json:"joined_at"`
	AnchorDay        *int       `db:"anchor_day" json:"anchor_day,omitempty"`
	LessonsRemaining *int       `db:"lessons_remaining" json:"lessons_remaining,omitempty"`
	NextDueDate      *time.Time `db:"next_due_date" json:"next_due_date,omitempty"`
	LastPaymentDate  *time.Time `db:"last_payment_date" json:"last_payment_date,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Snapshot returns an immutable copy suitable for the billing engine.
func (e Enrollment) Snapshot() billing.StudentEnrollment {
	return billing.StudentEnrollment{
		JoinedAt:         e.JoinedAt,
		AnchorDay:        copyInt(e.AnchorDay),
		LessonsRemaining: copyInt(e.LessonsRemaining),
		NextDueDate:      copyTime(e.NextDueDate),
		LastPaymentDate:  copyTime(e.LastPaymentDate),
	}
}

// EnrollmentDetail enriches Enrollment with student and group info.
type EnrollmentDetail struct {
	Enrollment
	StudentName       string              `db:"student_name" json:"student_name"`
	StudentTelegramID *int64              `db:"student_telegram_id" json:"student_telegram_id,omitempty"`
	GroupName         string              `db:"group_name" json:"group_name"`
	PaymentType       billing.PaymentType `db:"payment_type" json:"payment_type"`
	Price             decimal.Decimal     `db:"price" json:"price"`
}

// BillingConfig returns the billing configuration of the enrollment's group.
func (d EnrollmentDetail) BillingConfig() billing.GroupBillingConfig {
	return billing.GroupBillingConfig{PaymentType: d.PaymentType, Price: d.Price}
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	GroupID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// EnrollmentBalance is the lesson counter and billing cursor written after a payment.
type EnrollmentBalance struct {
	NextDueDate      *time.Time
	LastPaymentDate  *time.Time
	LessonsRemaining *int
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
