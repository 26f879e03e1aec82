package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
)

func newSQLMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var groupRowColumns = []string{"id", "name", "subject", "teacher_name", "payment_type", "price", "created_at", "updated_at"}

func TestGroupRepositoryList(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(groupRowColumns).
		AddRow("g1", "Math A", "Math", "Ms. Lee", "monthly_rolling", "150000.00", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE 1=1 AND payment_type = $1 ORDER BY price DESC LIMIT 10 OFFSET 10")).
		WithArgs(billing.PaymentTypeMonthlyRolling).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM groups WHERE 1=1 AND payment_type = $1")).
		WithArgs(billing.PaymentTypeMonthlyRolling).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	groups, total, err := repo.List(context.Background(), models.GroupFilter{
		PaymentType: billing.PaymentTypeMonthlyRolling,
		Page:        2,
		PageSize:    10,
		SortBy:      "price",
		SortOrder:   "desc",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, billing.PaymentTypeMonthlyRolling, groups[0].PaymentType)
	assert.True(t, decimal.NewFromInt(150000).Equal(groups[0].Price))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec("INSERT INTO groups").
		WithArgs(sqlmock.AnyArg(), "Physics", "Physics", "Mr. Kim", billing.PaymentTypeLessonBased, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	group := &models.Group{Name: "Physics", Subject: "Physics", TeacherName: "Mr. Kim", PaymentType: billing.PaymentTypeLessonBased, Price: decimal.NewFromInt(50000)}
	require.NoError(t, repo.Create(context.Background(), group))
	assert.NotEmpty(t, group.ID)
	assert.False(t, group.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryUpdateLeavesPaymentType(t *testing.T) {
	db, mock, cleanup := newSQLMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET name = ?, subject = ?, teacher_name = ?, price = ?, updated_at = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), &models.Group{ID: "g1", Name: "Math B", Price: decimal.NewFromInt(1)}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
