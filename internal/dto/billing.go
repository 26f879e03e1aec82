package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
)

// GroupStatusSummary counts enrollments by billing status within one group.
type GroupStatusSummary struct {
	GroupID     string              `json:"group_id"`
	GroupName   string              `json:"group_name"`
	PaymentType billing.PaymentType `json:"payment_type"`
	Active      int                 `json:"active"`
	Overdue     int                 `json:"overdue"`
}

// BillingSummary is the response of GET /billing/summary.
type BillingSummary struct {
	Date    string               `json:"date"`
	Total   int                  `json:"total"`
	Active  int                  `json:"active"`
	Overdue int                  `json:"overdue"`
	Groups  []GroupStatusSummary `json:"groups"`
}

// OverdueItem describes one overdue enrollment.
type OverdueItem struct {
	EnrollmentID     string              `json:"enrollment_id"`
	StudentID        string              `json:"student_id"`
	StudentName      string              `json:"student_name"`
	GroupID          string              `json:"group_id"`
	GroupName        string              `json:"group_name"`
	PaymentType      billing.PaymentType `json:"payment_type"`
	Price            decimal.Decimal     `json:"price" swaggertype:"string"`
	NextDueDate      *time.Time          `json:"next_due_date,omitempty"`
	DaysOverdue      int                 `json:"days_overdue"`
	LessonsRemaining *int                `json:"lessons_remaining,omitempty"`
}

// OverdueReport is the response of GET /billing/overdue.
type OverdueReport struct {
	Date  string        `json:"date"`
	Items []OverdueItem `json:"items"`
}

// EnrollmentStatus is the response of GET /enrollments/:id/status.
type EnrollmentStatus struct {
	Enrollment   models.EnrollmentDetail `json:"enrollment"`
	Status       billing.Status          `json:"status"`
	Date         string                  `json:"date"`
	DaysUntilDue *int                    `json:"days_until_due,omitempty"`
}

// ConsumeLessonResult is returned after a lesson is recorded.
type ConsumeLessonResult struct {
	EnrollmentID     string         `json:"enrollment_id"`
	LessonsRemaining int            `json:"lessons_remaining"`
	Status           billing.Status `json:"status"`
}

// SweepResult summarises one daily billing sweep.
type SweepResult struct {
	RunAt     time.Time      `json:"run_at"`
	Date      string         `json:"date"`
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	Overdue   int            `json:"overdue"`
	Reminders map[string]int `json:"reminders"`
	// Skipped counts reminders suppressed because they were already sent for this cycle.
	Skipped   int        `json:"skipped"`
	ReportURL string     `json:"report_url,omitempty"`
	ExpiresAt *time.Time `json:"report_expires_at,omitempty"`
}

// SystemMetrics is a lightweight snapshot of process metrics for the health endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64    `json:"cache_hit_ratio"`
	RequestsTotal            uint64     `json:"requests_total"`
	AverageRequestDurationMs float64    `json:"average_request_duration_ms"`
	SweepsTotal              uint64     `json:"sweeps_total"`
	LastSweepAt              *time.Time `json:"last_sweep_at,omitempty"`
	Goroutines               int        `json:"goroutines"`
}

// PaymentReceipt is returned after a payment is recorded.
type PaymentReceipt struct {
	Payment          models.Payment `json:"payment"`
	NextDueDate      *time.Time     `json:"next_due_date,omitempty"`
	LessonsRemaining *int           `json:"lessons_remaining,omitempty"`
	Status           billing.Status `json:"status"`
}
