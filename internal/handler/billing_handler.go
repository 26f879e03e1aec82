package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/middleware"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
	"github.com/noah-isme/tutor-billing-api/pkg/response"
)

type billingService interface {
	Summary(ctx context.Context, now time.Time) (*dto.BillingSummary, bool, error)
	Overdue(ctx context.Context, now time.Time) (*dto.OverdueReport, error)
}

type overdueRenderer interface {
	RenderOverdue(report *dto.OverdueReport, format service.ReportFormat) (*service.RenderedReport, error)
}

type sweepRunner interface {
	Run(ctx context.Context, now time.Time) (*dto.SweepResult, error)
}

// BillingHandler exposes billing dashboards, exports and the manual sweep trigger.
type BillingHandler struct {
	billing  billingService
	exporter overdueRenderer
	sweeper  sweepRunner
	clock    Clock
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing billingService, exporter overdueRenderer, sweeper sweepRunner, clock Clock) *BillingHandler {
	return &BillingHandler{billing: billing, exporter: exporter, sweeper: sweeper, clock: clock}
}

// Summary godoc
// @Summary Billing summary for today
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/summary [get]
func (h *BillingHandler) Summary(c *gin.Context) {
	start := time.Now()
	summary, cacheHit, err := h.billing.Summary(c.Request.Context(), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, summary, nil, meta)
}

// Overdue godoc
// @Summary Overdue enrollments
// @Tags Billing
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "json (default), csv or pdf"
// @Success 200 {object} response.Envelope
// @Router /billing/overdue [get]
func (h *BillingHandler) Overdue(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "json")))
	switch format {
	case "json", string(service.ReportFormatCSV), string(service.ReportFormatPDF):
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be json, csv or pdf"))
		return
	}

	report, err := h.billing.Overdue(c.Request.Context(), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == "json" {
		response.JSON(c, http.StatusOK, report, nil)
		return
	}

	rendered, err := h.exporter.RenderOverdue(report, service.ReportFormat(format))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report"))
		return
	}
	response.Attachment(c, rendered.Filename, rendered.ContentType, rendered.Data)
}

// Sweep godoc
// @Summary Run the billing sweep now
// @Description Runs the same pass as the daily scheduler. Returns 409 while another sweep is running.
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /billing/sweep [post]
func (h *BillingHandler) Sweep(c *gin.Context) {
	if h.sweeper == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "billing sweep not configured"))
		return
	}
	result, err := h.sweeper.Run(c.Request.Context(), h.clock.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
