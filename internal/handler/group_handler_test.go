package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/internal/service"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type fakeGroupSrv struct {
	filter  models.GroupFilter
	created service.CreateGroupRequest
	group   *models.Group
	err     error
}

func (f *fakeGroupSrv) List(_ context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	f.filter = filter
	return []models.Group{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, f.err
}

func (f *fakeGroupSrv) Get(context.Context, string) (*models.Group, error) {
	return f.group, f.err
}

func (f *fakeGroupSrv) Create(_ context.Context, req service.CreateGroupRequest) (*models.Group, error) {
	f.created = req
	return f.group, f.err
}

func (f *fakeGroupSrv) Update(context.Context, string, service.UpdateGroupRequest) (*models.Group, error) {
	return f.group, f.err
}

func TestGroupHandlerListParsesFilter(t *testing.T) {
	srv := &fakeGroupSrv{}
	h := NewGroupHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/groups?search=+math+&payment_type=lesson_based&page=2&limit=5")

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "math", srv.filter.Search)
	assert.Equal(t, billing.PaymentTypeLessonBased, srv.filter.PaymentType)
	assert.Equal(t, 2, srv.filter.Page)
	assert.Equal(t, 5, srv.filter.PageSize)
}

func TestGroupHandlerCreate(t *testing.T) {
	srv := &fakeGroupSrv{group: &models.Group{ID: "g1", Name: "Algebra", PaymentType: billing.PaymentTypeMonthlyRolling}}
	h := NewGroupHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/groups")
	c.Request = httptest.NewRequest(http.MethodPost, "/groups", strings.NewReader(`{"name":"Algebra","payment_type":"monthly_rolling","price":"150000"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, srv.created.Price.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, "g1", decode(t, rec).Data["id"])
}

func TestGroupHandlerCreateRejectsMalformedBody(t *testing.T) {
	h := NewGroupHandler(&fakeGroupSrv{})
	c, rec := newTestContext(http.MethodPost, "/groups")
	c.Request = httptest.NewRequest(http.MethodPost, "/groups", strings.NewReader(`{"name":`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupHandlerGetNotFound(t *testing.T) {
	h := NewGroupHandler(&fakeGroupSrv{err: appErrors.Clone(appErrors.ErrNotFound, "group not found")})
	c, rec := newTestContext(http.MethodGet, "/groups/missing")

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decode(t, rec).Error["code"])
}
