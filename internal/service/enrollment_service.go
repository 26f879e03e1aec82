package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/internal/repository"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForStudentGroup(ctx context.Context, studentID, groupID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
	DecrementLesson(ctx context.Context, id string) (int, error)
	UpdateNextDueDate(ctx context.Context, id string, due *time.Time) error
}

type enrollmentStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type enrollmentGroupReader interface {
	FindByID(ctx context.Context, id string) (*models.Group, error)
}

// EnrollRequest adds a student to a group.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	GroupID   string `json:"group_id" validate:"required"`
	// JoinedAt defaults to today in the billing timezone.
	JoinedAt       string `json:"joined_at" validate:"omitempty,datetime=2006-01-02"`
	AnchorDay      *int   `json:"anchor_day"`
	InitialLessons *int   `json:"initial_lessons" validate:"omitempty,min=0"`
}

// EnrollmentService manages group membership and the per-enrollment billing cursor.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  enrollmentStudentReader
	groups    enrollmentGroupReader
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService wires enrollment dependencies.
func NewEnrollmentService(repo enrollmentRepository, students enrollmentStudentReader, groups enrollmentGroupReader, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, groups: groups, cache: cache, validator: validate, logger: logger}
}

// List returns enrollment details and pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one enrollment with student and group details.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return detail, nil
}

// Enroll adds a student to a group and sets the first due date.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, now time.Time) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is inactive")
	}

	group, err := s.groups.FindByID(ctx, req.GroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}

	exists, err := s.repo.ExistsForStudentGroup(ctx, req.StudentID, req.GroupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")
	}

	joinedAt := calendarDay(now)
	if req.JoinedAt != "" {
		joinedAt, err = time.Parse(dateLayout, req.JoinedAt)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid joined_at")
		}
	}

	enrollment := &models.Enrollment{StudentID: student.ID, GroupID: group.ID, JoinedAt: joinedAt}
	switch group.PaymentType {
	case billing.PaymentTypeMonthlyRolling:
		anchor := joinedAt.Day()
		if req.AnchorDay != nil {
			anchor = *req.AnchorDay
		}
		if err := billing.ValidateAnchorDay(anchor); err != nil {
			return nil, appErrors.ErrInvalidAnchorDay
		}
		enrollment.AnchorDay = &anchor
	case billing.PaymentTypeMonthlyFixed, billing.PaymentTypeLessonBased:
		if req.AnchorDay != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "anchor_day only applies to monthly_rolling groups")
		}
	default:
		return nil, appErrors.ErrUnsupportedPaymentType
	}

	if group.PaymentType == billing.PaymentTypeLessonBased {
		lessons := 0
		if req.InitialLessons != nil {
			lessons = *req.InitialLessons
		}
		enrollment.LessonsRemaining = &lessons
	} else if req.InitialLessons != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "initial_lessons only applies to lesson_based groups")
	}

	if due := billing.CalculateInitialDueDate(joinedAt, group.PaymentType, enrollment.AnchorDay); !due.IsZero() {
		enrollment.NextDueDate = &due
	}

	if err := s.repo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrDuplicateEnrollment) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", student.ID),
		zap.String("group_id", group.ID),
		zap.String("payment_type", string(group.PaymentType)),
	)
	invalidateBilling(ctx, s.cache, s.logger)
	return enrollment, nil
}

// Leave removes the student from the group.
func (s *EnrollmentService) Leave(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	s.logger.Info("enrollment removed", zap.String("enrollment_id", id))
	invalidateBilling(ctx, s.cache, s.logger)
	return nil
}

// ConsumeLesson records one attended lesson on a lesson_based enrollment.
func (s *EnrollmentService) ConsumeLesson(ctx context.Context, id string, now time.Time) (*dto.ConsumeLessonResult, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if detail.PaymentType != billing.PaymentTypeLessonBased {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "lessons are only tracked for lesson_based groups")
	}
	if detail.LessonsRemaining == nil || *detail.LessonsRemaining <= 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no lessons remaining")
	}

	remaining, err := s.repo.DecrementLesson(ctx, id)
	if err != nil {
		// the enrollment exists, so no row means another request took the last lesson
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no lessons remaining")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume lesson")
	}
	detail.LessonsRemaining = &remaining
	invalidateBilling(ctx, s.cache, s.logger)

	return &dto.ConsumeLessonResult{
		EnrollmentID:     id,
		LessonsRemaining: remaining,
		Status:           billing.CheckStudentStatus(detail.Snapshot(), detail.BillingConfig(), now),
	}, nil
}

// AdjustDueDateRequest moves a monthly enrollment's due date by hand, e.g. to waive a month.
type AdjustDueDateRequest struct {
	NextDueDate string `json:"next_due_date" validate:"required,datetime=2006-01-02"`
}

// AdjustDueDate overwrites the due date of a monthly enrollment. Later payments advance from the
// new date using the stored anchor.
func (s *EnrollmentService) AdjustDueDate(ctx context.Context, id string, req AdjustDueDateRequest, now time.Time) (*dto.EnrollmentStatus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid due date payload")
	}
	due, err := time.Parse(dateLayout, req.NextDueDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid next_due_date")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !detail.PaymentType.Monthly() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "lesson_based enrollments have no due date")
	}
	if err := s.repo.UpdateNextDueDate(ctx, id, &due); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update due date")
	}
	s.logger.Info("due date adjusted", zap.String("enrollment_id", id), zap.String("next_due_date", req.NextDueDate))
	invalidateBilling(ctx, s.cache, s.logger)
	return s.Status(ctx, id, now)
}

// Status evaluates the enrollment's billing status on the calendar day of now.
func (s *EnrollmentService) Status(ctx context.Context, id string, now time.Time) (*dto.EnrollmentStatus, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &dto.EnrollmentStatus{
		Enrollment: *detail,
		Status:     billing.CheckStudentStatus(detail.Snapshot(), detail.BillingConfig(), now),
		Date:       now.Format(dateLayout),
	}
	if detail.PaymentType.Monthly() && detail.NextDueDate != nil {
		days := billing.DaysUntil(*detail.NextDueDate, now)
		result.DaysUntilDue = &days
	}
	return result, nil
}

// calendarDay keeps the year, month and day of t as seen in its location, at UTC midnight,
// matching how DATE columns come back from Postgres.
func calendarDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
