package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
	"github.com/noah-isme/tutor-billing-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Enroll(ctx context.Context, req service.EnrollRequest, now time.Time) (*models.Enrollment, error)
	Leave(ctx context.Context, id string) error
	ConsumeLesson(ctx context.Context, id string, now time.Time) (*dto.ConsumeLessonResult, error)
	Status(ctx context.Context, id string, now time.Time) (*dto.EnrollmentStatus, error)
	AdjustDueDate(ctx context.Context, id string, req service.AdjustDueDateRequest, now time.Time) (*dto.EnrollmentStatus, error)
}

type paymentService interface {
	Record(ctx context.Context, enrollmentID string, req service.RecordPaymentRequest, recordedBy string, now time.Time) (*dto.PaymentReceipt, error)
	List(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

// EnrollmentHandler exposes enrollment, lesson and payment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
	payments    paymentService
	clock       Clock
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService, payments paymentService, clock Clock) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, payments: payments, clock: clock}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param group_id query string false "Filter by group"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		StudentID: c.Query("student_id"),
		GroupID:   c.Query("group_id"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	item, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Enroll godoc
// @Summary Enroll a student in a group
// @Description Sets the first due date from the group's payment type.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), req, h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Leave godoc
// @Summary Remove a student from a group
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Leave(c *gin.Context) {
	if err := h.enrollments.Leave(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Status godoc
// @Summary Billing status of an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [get]
func (h *EnrollmentHandler) Status(c *gin.Context) {
	status, err := h.enrollments.Status(c.Request.Context(), c.Param("id"), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// ConsumeLesson godoc
// @Summary Record an attended lesson
// @Description Decrements the remaining lessons of a lesson_based enrollment.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/lessons/consume [post]
func (h *EnrollmentHandler) ConsumeLesson(c *gin.Context) {
	result, err := h.enrollments.ConsumeLesson(c.Request.Context(), c.Param("id"), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AdjustDueDate godoc
// @Summary Move the due date of a monthly enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.AdjustDueDateRequest true "New due date"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id}/due-date [put]
func (h *EnrollmentHandler) AdjustDueDate(c *gin.Context) {
	var req service.AdjustDueDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	status, err := h.enrollments.AdjustDueDate(c.Request.Context(), c.Param("id"), req, h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// RecordPayment godoc
// @Summary Record a payment
// @Description Monthly groups advance the due date by one period. Lesson groups add lessons.
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/payments [post]
func (h *EnrollmentHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	recordedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		recordedBy = claims.UserID
	}
	receipt, err := h.payments.Record(c.Request.Context(), c.Param("id"), req, recordedBy, h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// ListPayments godoc
// @Summary Payment history of an enrollment
// @Tags Payments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/payments [get]
func (h *EnrollmentHandler) ListPayments(c *gin.Context) {
	payments, err := h.payments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}
