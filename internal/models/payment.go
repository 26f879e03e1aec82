package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records tuition received for an enrollment.
type Payment struct {
	ID           string          `db:"id" json:"id"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	PaidAt       time.Time       `db:"paid_at" json:"paid_at"`
	Lessons      *int            `db:"lessons" json:"lessons,omitempty"`
	// CoveredUntil is the due date the payment moved the enrollment to, for monthly groups.
	CoveredUntil *time.Time `db:"covered_until" json:"covered_until,omitempty"`
	Note         string     `db:"note" json:"note,omitempty"`
	RecordedBy   string     `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
