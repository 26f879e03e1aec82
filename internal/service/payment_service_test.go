package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type mockPaymentRepo struct {
	created []models.Payment
	history []models.Payment
}

func (m *mockPaymentRepo) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	payment.ID = "p-new"
	m.created = append(m.created, *payment)
	return nil
}

func (m *mockPaymentRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	return m.history, nil
}

type mockPaymentEnrollments struct {
	details  map[string]models.EnrollmentDetail
	balances map[string]models.EnrollmentBalance
}

func (m *mockPaymentEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if d, ok := m.details[id]; ok {
		return &d.Enrollment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentEnrollments) LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentEnrollments) ApplyPayment(ctx context.Context, exec sqlx.ExtContext, id string, balance models.EnrollmentBalance) error {
	if m.balances == nil {
		m.balances = map[string]models.EnrollmentBalance{}
	}
	m.balances[id] = balance
	d := m.details[id]
	d.NextDueDate = balance.NextDueDate
	d.LastPaymentDate = balance.LastPaymentDate
	d.LessonsRemaining = balance.LessonsRemaining
	m.details[id] = d
	return nil
}

func newPaymentFixture(t *testing.T, details map[string]models.EnrollmentDetail) (*PaymentService, *mockPaymentRepo, *mockPaymentEnrollments, *MetricsService, func(commit bool)) {
	db, mock := newTxMock(t)
	payments := &mockPaymentRepo{}
	enrollments := &mockPaymentEnrollments{details: details}
	metrics := NewMetricsService()
	svc := NewPaymentService(payments, enrollments, db, &fakeInvalidator{}, metrics, nil, nil)
	expect := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return svc, payments, enrollments, metrics, expect
}

func TestPaymentServiceRollingRecoversAnchorAfterShortMonth(t *testing.T) {
	details := map[string]models.EnrollmentDetail{
		"e1": {
			Enrollment: models.Enrollment{
				ID:          "e1",
				JoinedAt:    day(2024, time.January, 31),
				AnchorDay:   intPtr(31),
				NextDueDate: timePtr(day(2024, time.February, 29)),
			},
			PaymentType: billing.PaymentTypeMonthlyRolling,
		},
	}
	svc, payments, enrollments, metrics, expect := newPaymentFixture(t, details)
	expect(true)
	expect(true)

	receipt, err := svc.Record(context.Background(), "e1", RecordPaymentRequest{Amount: decimal.NewFromInt(200000)}, "admin-1", day(2024, time.February, 28))
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.March, 31), *receipt.NextDueDate)
	assert.Equal(t, billing.StatusActive, receipt.Status)
	assert.Equal(t, day(2024, time.March, 31), *payments.created[0].CoveredUntil)
	assert.Equal(t, "admin-1", payments.created[0].RecordedBy)
	assert.Equal(t, day(2024, time.February, 28), *enrollments.balances["e1"].LastPaymentDate)

	receipt, err = svc.Record(context.Background(), "e1", RecordPaymentRequest{Amount: decimal.NewFromInt(200000), PaidAt: "2024-03-30"}, "admin-1", day(2024, time.March, 30))
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.April, 30), *receipt.NextDueDate)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.paymentsRecorded.WithLabelValues("monthly_rolling")))
}

func TestPaymentServiceFixedAdvancesToFirstOfNextMonth(t *testing.T) {
	details := map[string]models.EnrollmentDetail{
		"e1": {
			Enrollment:  models.Enrollment{ID: "e1", JoinedAt: day(2024, time.May, 10), NextDueDate: timePtr(day(2024, time.June, 1))},
			PaymentType: billing.PaymentTypeMonthlyFixed,
		},
	}
	svc, _, _, _, expect := newPaymentFixture(t, details)
	expect(true)

	receipt, err := svc.Record(context.Background(), "e1", RecordPaymentRequest{Amount: decimal.NewFromInt(1)}, "", day(2024, time.June, 20))
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.July, 1), *receipt.NextDueDate)
}

func TestPaymentServiceMonthlyWithoutDueDateUsesInitialDueDate(t *testing.T) {
	details := map[string]models.EnrollmentDetail{
		"e1": {
			Enrollment:  models.Enrollment{ID: "e1", JoinedAt: day(2024, time.January, 15), AnchorDay: intPtr(15)},
			PaymentType: billing.PaymentTypeMonthlyRolling,
		},
	}
	svc, _, _, _, expect := newPaymentFixture(t, details)
	expect(true)

	receipt, err := svc.Record(context.Background(), "e1", RecordPaymentRequest{Amount: decimal.NewFromInt(1)}, "", day(2024, time.January, 20))
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.March, 15), *receipt.NextDueDate)
}

func TestPaymentServiceLessonTopUp(t *testing.T) {
	details := map[string]models.EnrollmentDetail{
		"e1": {
			Enrollment:  models.Enrollment{ID: "e1", LessonsRemaining: intPtr(1)},
			PaymentType: billing.PaymentTypeLessonBased,
		},
	}
	svc, payments, _, _, expect := newPaymentFixture(t, details)
	expect(true)

	receipt, err := svc.Record(context.Background(), "e1", RecordPaymentRequest{Amount: decimal.NewFromInt(80000), Lessons: intPtr(8)}, "", day(2024, time.June, 1))
	require.NoError(t, err)
	assert.Equal(t, 9, *receipt.LessonsRemaining)
	assert.Nil(t, receipt.NextDueDate)
	assert.Equal(t, 8, *payments.created[0].Lessons)
	assert.Nil(t, payments.created[0].CoveredUntil)
}

func TestPaymentServiceRejections(t *testing.T) {
	details := map[string]models.EnrollmentDetail{
		"lesson":  {Enrollment: models.Enrollment{ID: "lesson"}, PaymentType: billing.PaymentTypeLessonBased},
		"monthly": {Enrollment: models.Enrollment{ID: "monthly", NextDueDate: timePtr(day(2024, time.June, 1))}, PaymentType: billing.PaymentTypeMonthlyFixed},
	}

	t.Run("lessons missing rolls back", func(t *testing.T) {
		svc, payments, _, _, expect := newPaymentFixture(t, details)
		expect(false)
		_, err := svc.Record(context.Background(), "lesson", RecordPaymentRequest{Amount: decimal.NewFromInt(1)}, "", day(2024, time.June, 1))
		assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))
		assert.Empty(t, payments.created)
	})

	t.Run("lessons on monthly rolls back", func(t *testing.T) {
		svc, _, _, _, expect := newPaymentFixture(t, details)
		expect(false)
		_, err := svc.Record(context.Background(), "monthly", RecordPaymentRequest{Amount: decimal.NewFromInt(1), Lessons: intPtr(2)}, "", day(2024, time.June, 1))
		assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))
	})

	t.Run("unknown enrollment rolls back", func(t *testing.T) {
		svc, _, _, _, expect := newPaymentFixture(t, details)
		expect(false)
		_, err := svc.Record(context.Background(), "missing", RecordPaymentRequest{Amount: decimal.NewFromInt(1)}, "", day(2024, time.June, 1))
		assert.Equal(t, appErrors.ErrNotFound.Code, appCode(t, err))
	})

	t.Run("non positive amount never opens a transaction", func(t *testing.T) {
		svc, _, _, _, _ := newPaymentFixture(t, details)
		_, err := svc.Record(context.Background(), "monthly", RecordPaymentRequest{Amount: decimal.Zero}, "", day(2024, time.June, 1))
		assert.Equal(t, appErrors.ErrValidation.Code, appCode(t, err))
	})
}

func TestPaymentServiceList(t *testing.T) {
	details := map[string]models.EnrollmentDetail{"e1": {Enrollment: models.Enrollment{ID: "e1"}}}
	svc, payments, _, _, _ := newPaymentFixture(t, details)
	payments.history = []models.Payment{{ID: "p1"}}

	list, err := svc.List(context.Background(), "e1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.List(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appCode(t, err))
}
