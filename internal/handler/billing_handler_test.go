package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type apiEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

type fakeBillingSrv struct {
	summary *dto.BillingSummary
	hit     bool
	overdue *dto.OverdueReport
	err     error
	lastNow time.Time
}

func (f *fakeBillingSrv) Summary(_ context.Context, now time.Time) (*dto.BillingSummary, bool, error) {
	f.lastNow = now
	return f.summary, f.hit, f.err
}

func (f *fakeBillingSrv) Overdue(_ context.Context, now time.Time) (*dto.OverdueReport, error) {
	f.lastNow = now
	return f.overdue, f.err
}

type fakeSweeper struct {
	result *dto.SweepResult
	err    error
}

func (f *fakeSweeper) Run(context.Context, time.Time) (*dto.SweepResult, error) {
	return f.result, f.err
}

func TestBillingHandlerSummaryReportsCacheHit(t *testing.T) {
	now := time.Date(2024, time.June, 5, 8, 30, 0, 0, time.UTC)
	srv := &fakeBillingSrv{summary: &dto.BillingSummary{Date: "2024-06-05", Total: 4, Overdue: 1}, hit: true}
	h := NewBillingHandler(srv, nil, nil, fixedClock(now))
	c, rec := newTestContext(http.MethodGet, "/billing/summary")

	h.Summary(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(1), envelope.Data["overdue"])
	assert.Equal(t, now, srv.lastNow)
}

func TestBillingHandlerOverdueFormats(t *testing.T) {
	srv := &fakeBillingSrv{overdue: &dto.OverdueReport{Date: "2024-06-05", Items: []dto.OverdueItem{{EnrollmentID: "e1", StudentName: "Budi", DaysOverdue: 4}}}}
	h := NewBillingHandler(srv, service.NewExportService(nil, nil), nil, fixedClock(time.Now()))

	c, rec := newTestContext(http.MethodGet, "/billing/overdue")
	h.Overdue(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-05", decode(t, rec).Data["date"])

	c, rec = newTestContext(http.MethodGet, "/billing/overdue?format=CSV")
	h.Overdue(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "overdue_2024-06-05.csv")
	assert.Contains(t, rec.Body.String(), "Budi")

	c, rec = newTestContext(http.MethodGet, "/billing/overdue?format=xlsx")
	h.Overdue(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingHandlerOverdueStoreError(t *testing.T) {
	h := NewBillingHandler(&fakeBillingSrv{err: appErrors.Clone(appErrors.ErrInternal, "boom")}, nil, nil, nil)
	c, rec := newTestContext(http.MethodGet, "/billing/overdue")

	h.Overdue(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBillingHandlerSweep(t *testing.T) {
	h := NewBillingHandler(nil, nil, &fakeSweeper{result: &dto.SweepResult{Date: "2024-06-05", Overdue: 2}}, fixedClock(time.Now()))
	c, rec := newTestContext(http.MethodPost, "/billing/sweep")
	h.Sweep(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec).Data["overdue"])

	h = NewBillingHandler(nil, nil, &fakeSweeper{err: appErrors.Clone(appErrors.ErrConflict, "billing sweep already running")}, nil)
	c, rec = newTestContext(http.MethodPost, "/billing/sweep")
	h.Sweep(c)
	assert.Equal(t, http.StatusConflict, rec.Code)

	h = NewBillingHandler(nil, nil, &fakeSweeper{err: errors.New("db down")}, nil)
	c, rec = newTestContext(http.MethodPost, "/billing/sweep")
	h.Sweep(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
