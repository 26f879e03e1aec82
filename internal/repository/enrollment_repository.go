package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutor-billing-api/internal/models"
)

// ErrDuplicateEnrollment is returned by Create when the student already belongs to the group.
var ErrDuplicateEnrollment = errors.New("enrollment already exists")

const uniqueViolation = "23505"

const enrollmentColumns = `e.id, e.student_id, e.group_id, e.joined_at, e.anchor_day, e.lessons_remaining, e.next_due_date, e.last_payment_date, e.created_at, e.updated_at`

const enrollmentDetailSelect = `SELECT ` + enrollmentColumns + `,
        s.full_name AS student_name, s.telegram_id AS student_telegram_id,
        g.name AS group_name, g.payment_type, g.price
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN groups g ON g.id = e.group_id`

// EnrollmentRepository persists enrollments and their billing cursor.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns enrollment details matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.GroupID != "" {
		args = append(args, filter.GroupID)
		conditions = append(conditions, fmt.Sprintf("e.group_id = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"joined_at":     "e.joined_at",
		"next_due_date": "e.next_due_date",
		"student_name":  "s.full_name",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.joined_at"
	}
	order := sortOrder(filter.SortOrder, "DESC")
	size, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d", enrollmentDetailSelect, where, column, order, size, offset)
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM enrollments e WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// FindByID fetches a bare enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments e WHERE e.id = $1", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID fetches an enrollment with its student and group configuration.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// LockDetail fetches an enrollment detail and locks the enrollment row for the rest of the transaction.
func (r *EnrollmentRepository) LockDetail(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := sqlx.GetContext(ctx, r.exec(exec), &detail, enrollmentDetailSelect+" WHERE e.id = $1 FOR UPDATE OF e", id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsForStudentGroup reports whether the student already belongs to the group.
func (r *EnrollmentRepository) ExistsForStudentGroup(ctx context.Context, studentID, groupID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM enrollments WHERE student_id = $1 AND group_id = $2 LIMIT 1", studentID, groupID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, group_id, joined_at, anchor_day, lessons_remaining, next_due_date, last_payment_date, created_at, updated_at)
        VALUES (:id, :student_id, :group_id, :joined_at, :anchor_day, :lessons_remaining, :next_due_date, :last_payment_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment. Payments cascade in the schema.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM enrollments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateNextDueDate overwrites the due date cursor.
func (r *EnrollmentRepository) UpdateNextDueDate(ctx context.Context, id string, due *time.Time) error {
	res, err := r.db.ExecContext(ctx, "UPDATE enrollments SET next_due_date = $1, updated_at = $2 WHERE id = $3", due, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update next due date: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyPayment stores the balance produced by a payment.
func (r *EnrollmentRepository) ApplyPayment(ctx context.Context, exec sqlx.ExtContext, id string, balance models.EnrollmentBalance) error {
	const query = `UPDATE enrollments SET next_due_date = $1, last_payment_date = $2, lessons_remaining = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.exec(exec).ExecContext(ctx, query, balance.NextDueDate, balance.LastPaymentDate, balance.LessonsRemaining, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("apply payment to enrollment: %w", err)
	}
	return nil
}

// DecrementLesson consumes one lesson and returns the remaining count. It returns sql.ErrNoRows
// when the enrollment is missing or has no lessons left, so concurrent consumers cannot overdraw.
func (r *EnrollmentRepository) DecrementLesson(ctx context.Context, id string) (int, error) {
	const query = `UPDATE enrollments SET lessons_remaining = lessons_remaining - 1, updated_at = $1
        WHERE id = $2 AND lessons_remaining > 0 RETURNING lessons_remaining`
	var remaining int
	if err := r.db.GetContext(ctx, &remaining, query, time.Now().UTC(), id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("decrement lesson: %w", err)
	}
	return remaining, nil
}

// ListBillable returns every enrollment of an active student along with its group configuration.
func (r *EnrollmentRepository) ListBillable(ctx context.Context) ([]models.EnrollmentDetail, error) {
	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, enrollmentDetailSelect+" WHERE s.active = TRUE ORDER BY g.name, s.full_name"); err != nil {
		return nil, fmt.Errorf("list billable enrollments: %w", err)
	}
	return items, nil
}
