package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/middleware"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type fakeEnrollmentSrv struct {
	lastReq service.EnrollRequest
	lastNow time.Time
	err     error
}

func (f *fakeEnrollmentSrv) List(context.Context, models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return []models.EnrollmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, f.err
}

func (f *fakeEnrollmentSrv) Get(context.Context, string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{}, f.err
}

func (f *fakeEnrollmentSrv) Enroll(_ context.Context, req service.EnrollRequest, now time.Time) (*models.Enrollment, error) {
	f.lastReq = req
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	return &models.Enrollment{ID: "e1", StudentID: req.StudentID, GroupID: req.GroupID}, nil
}

func (f *fakeEnrollmentSrv) Leave(context.Context, string) error { return f.err }

func (f *fakeEnrollmentSrv) ConsumeLesson(_ context.Context, id string, now time.Time) (*dto.ConsumeLessonResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ConsumeLessonResult{EnrollmentID: id, LessonsRemaining: 0, Status: billing.StatusOverdue}, nil
}

func (f *fakeEnrollmentSrv) Status(_ context.Context, id string, now time.Time) (*dto.EnrollmentStatus, error) {
	f.lastNow = now
	return &dto.EnrollmentStatus{Status: billing.StatusActive, Date: now.Format("2006-01-02")}, f.err
}

func (f *fakeEnrollmentSrv) AdjustDueDate(_ context.Context, id string, req service.AdjustDueDateRequest, now time.Time) (*dto.EnrollmentStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dto.EnrollmentStatus{Status: billing.StatusActive, Date: req.NextDueDate}, nil
}

type fakePaymentSrv struct {
	recordedBy string
	req        service.RecordPaymentRequest
}

func (f *fakePaymentSrv) Record(_ context.Context, id string, req service.RecordPaymentRequest, recordedBy string, now time.Time) (*dto.PaymentReceipt, error) {
	f.recordedBy = recordedBy
	f.req = req
	return &dto.PaymentReceipt{Payment: models.Payment{ID: "p1", EnrollmentID: id}, Status: billing.StatusActive}, nil
}

func (f *fakePaymentSrv) List(context.Context, string) ([]models.Payment, error) {
	return []models.Payment{{ID: "p1"}}, nil
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	now := time.Date(2024, time.January, 31, 10, 0, 0, 0, time.UTC)
	srv := &fakeEnrollmentSrv{}
	h := NewEnrollmentHandler(srv, nil, fixedClock(now))

	c, rec := newTestContext(http.MethodPost, "/enrollments")
	c.Request.Body = ioNopCloser(`{"student_id":"s1","group_id":"g1","joined_at":"2024-01-31","anchor_day":31}`)
	h.Enroll(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "s1", srv.lastReq.StudentID)
	assert.Equal(t, 31, *srv.lastReq.AnchorDay)
	assert.Equal(t, now, srv.lastNow)
}

func TestEnrollmentHandlerEnrollErrors(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollmentSrv{}, nil, nil)
	c, rec := newTestContext(http.MethodPost, "/enrollments")
	c.Request.Body = ioNopCloser(`{"student_id":`)
	h.Enroll(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewEnrollmentHandler(&fakeEnrollmentSrv{err: appErrors.Clone(appErrors.ErrConflict, "student already enrolled in group")}, nil, nil)
	c, rec = newTestContext(http.MethodPost, "/enrollments")
	c.Request.Body = ioNopCloser(`{"student_id":"s1","group_id":"g1"}`)
	h.Enroll(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEnrollmentHandlerConsumeLessonPrecondition(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollmentSrv{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "no lessons remaining")}, nil, nil)
	c, rec := newTestContext(http.MethodPost, "/enrollments/e1/lessons/consume")
	h.ConsumeLesson(c)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestEnrollmentHandlerStatusUsesClock(t *testing.T) {
	now := time.Date(2024, time.June, 5, 23, 0, 0, 0, time.UTC)
	srv := &fakeEnrollmentSrv{}
	h := NewEnrollmentHandler(srv, nil, fixedClock(now))
	c, rec := newTestContext(http.MethodGet, "/enrollments/e1/status")

	h.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-05", decode(t, rec).Data["date"])
}

func TestEnrollmentHandlerRecordPaymentUsesCaller(t *testing.T) {
	payments := &fakePaymentSrv{}
	h := NewEnrollmentHandler(&fakeEnrollmentSrv{}, payments, fixedClock(time.Now()))
	c, rec := newTestContext(http.MethodPost, "/enrollments/e1/payments")
	c.Request.Body = ioNopCloser(`{"amount":"250000","note":"cash"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-7", Role: models.RoleAdmin})

	h.RecordPayment(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-7", payments.recordedBy)
	assert.Equal(t, "250000", payments.req.Amount.String())
	assert.Equal(t, "cash", payments.req.Note)
}

func TestEnrollmentHandlerListPayments(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollmentSrv{}, &fakePaymentSrv{}, nil)
	c, rec := newTestContext(http.MethodGet, "/enrollments/e1/payments")
	h.ListPayments(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"p1"`))
}

func TestEnrollmentHandlerAdjustDueDate(t *testing.T) {
	h := NewEnrollmentHandler(&fakeEnrollmentSrv{}, nil, fixedClock(time.Now()))
	c, rec := newTestContext(http.MethodPut, "/enrollments/e1/due-date")
	c.Request.Body = ioNopCloser(`{"next_due_date":"2024-04-01"}`)

	h.AdjustDueDate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-04-01", decode(t, rec).Data["date"])
}
