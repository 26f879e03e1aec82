package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-billing-api/internal/models"
)

// PaymentRepository persists payment history.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment using the provided executor, or the pool when exec is nil.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	target := exec
	if target == nil {
		target = r.db
	}
	const query = `INSERT INTO payments (id, enrollment_id, amount, paid_at, lessons, covered_until, note, recorded_by, created_at)
        VALUES (:id, :enrollment_id, :amount, :paid_at, :lessons, :covered_until, :note, :recorded_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListByEnrollment returns payments for an enrollment, newest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	const query = `SELECT id, enrollment_id, amount, paid_at, lessons, covered_until, note, recorded_by, created_at
        FROM payments WHERE enrollment_id = $1 ORDER BY paid_at DESC, created_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
