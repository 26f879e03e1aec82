package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-billing-api/internal/models"
)

func TestPaymentRepositoryCreateWithoutTransaction(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "e1", "120000", sqlmock.AnyArg(), nil, nil, "cash", "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{EnrollmentID: "e1", Amount: decimal.NewFromInt(120000), PaidAt: time.Now(), Note: "cash", RecordedBy: "admin-1"}
	require.NoError(t, repo.Create(context.Background(), nil, payment))
	assert.NotEmpty(t, payment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "amount", "paid_at", "lessons", "covered_until", "note", "recorded_by", "created_at"}).
		AddRow("p2", "e1", "40000", now, 8, nil, "", "", now).
		AddRow("p1", "e1", "40000", now.AddDate(0, -1, 0), 8, nil, "", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments WHERE enrollment_id = $1 ORDER BY paid_at DESC")).
		WithArgs("e1").
		WillReturnRows(rows)

	payments, err := repo.ListByEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.NotNil(t, payments[0].Lessons)
	assert.Equal(t, 8, *payments[0].Lessons)
	assert.NoError(t, mock.ExpectationsWereMet())
}
