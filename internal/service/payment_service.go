package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

type paymentEnrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentDetail, error)
	ApplyPayment(ctx context.Context, exec sqlx.ExtContext, id string, balance models.EnrollmentBalance) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RecordPaymentRequest captures a tuition payment.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" swaggertype:"string"`
	// PaidAt defaults to today in the billing timezone.
	PaidAt  string `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
	Lessons *int   `json:"lessons" validate:"omitempty,min=1"`
	Note    string `json:"note" validate:"max=500"`
}

// PaymentService records payments and advances the enrollment's billing cursor.
type PaymentService struct {
	payments    paymentRepository
	enrollments paymentEnrollmentStore
	tx          txProvider
	cache       cacheInvalidator
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPaymentService wires payment dependencies.
func NewPaymentService(payments paymentRepository, enrollments paymentEnrollmentStore, tx txProvider, cache cacheInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		payments:    payments,
		enrollments: enrollments,
		tx:          tx,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Record stores a payment and moves the enrollment forward by one billing period, or tops up lessons.
// The enrollment row is locked for the duration so concurrent payments apply in sequence.
func (s *PaymentService) Record(ctx context.Context, enrollmentID string, req RecordPaymentRequest, recordedBy string, now time.Time) (receipt *dto.PaymentReceipt, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be positive")
	}
	paidAt := calendarDay(now)
	if req.PaidAt != "" {
		if paidAt, err = time.Parse(dateLayout, req.PaidAt); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid paid_at")
		}
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	detail, err := s.enrollments.LockDetail(ctx, tx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	payment := &models.Payment{
		EnrollmentID: enrollmentID,
		Amount:       req.Amount,
		PaidAt:       paidAt,
		Note:         req.Note,
		RecordedBy:   recordedBy,
	}
	balance, err := applyPayment(detail, req, paidAt)
	if err != nil {
		return nil, err
	}
	if detail.PaymentType.Monthly() {
		payment.CoveredUntil = balance.NextDueDate
	} else {
		payment.Lessons = req.Lessons
	}

	if err = s.payments.Create(ctx, tx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	if err = s.enrollments.ApplyPayment(ctx, tx, enrollmentID, balance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment balance")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit payment")
	}

	s.metrics.RecordPayment(string(detail.PaymentType))
	invalidateBilling(ctx, s.cache, s.logger)

	detail.NextDueDate = balance.NextDueDate
	detail.LastPaymentDate = balance.LastPaymentDate
	detail.LessonsRemaining = balance.LessonsRemaining
	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("enrollment_id", enrollmentID),
		zap.String("amount", payment.Amount.String()),
		zap.String("payment_type", string(detail.PaymentType)),
	)

	return &dto.PaymentReceipt{
		Payment:          *payment,
		NextDueDate:      balance.NextDueDate,
		LessonsRemaining: balance.LessonsRemaining,
		Status:           billing.CheckStudentStatus(detail.Snapshot(), detail.BillingConfig(), now),
	}, nil
}

// List returns payment history for an enrollment.
func (s *PaymentService) List(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	if _, err := s.enrollments.FindByID(ctx, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	payments, err := s.payments.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// applyPayment computes the enrollment balance after a payment without touching storage.
func applyPayment(detail *models.EnrollmentDetail, req RecordPaymentRequest, paidAt time.Time) (models.EnrollmentBalance, error) {
	balance := models.EnrollmentBalance{
		NextDueDate:      detail.NextDueDate,
		LastPaymentDate:  &paidAt,
		LessonsRemaining: detail.LessonsRemaining,
	}

	switch detail.PaymentType {
	case billing.PaymentTypeMonthlyFixed, billing.PaymentTypeMonthlyRolling:
		if req.Lessons != nil {
			return balance, appErrors.Clone(appErrors.ErrValidation, "lessons only apply to lesson_based groups")
		}
		base := billing.CalculateInitialDueDate(detail.JoinedAt, detail.PaymentType, detail.AnchorDay)
		if detail.NextDueDate != nil {
			base = *detail.NextDueDate
		}
		anchor := 1
		if detail.PaymentType == billing.PaymentTypeMonthlyRolling {
			anchor = detail.JoinedAt.Day()
			if detail.AnchorDay != nil {
				anchor = *detail.AnchorDay
			}
		}
		next := billing.CalculateNextDueDate(base, anchor)
		balance.NextDueDate = &next
	case billing.PaymentTypeLessonBased:
		if req.Lessons == nil {
			return balance, appErrors.Clone(appErrors.ErrValidation, "lessons is required for lesson_based groups")
		}
		remaining := *req.Lessons
		if detail.LessonsRemaining != nil && *detail.LessonsRemaining > 0 {
			remaining += *detail.LessonsRemaining
		}
		balance.LessonsRemaining = &remaining
	default:
		return balance, appErrors.ErrUnsupportedPaymentType
	}
	return balance, nil
}
