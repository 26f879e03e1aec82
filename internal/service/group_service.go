package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, int, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
}

// CreateGroupRequest holds payload for creating groups.
type CreateGroupRequest struct {
	Name        string              `json:"name" validate:"required,max=120"`
	Subject     string              `json:"subject" validate:"max=120"`
	TeacherName string              `json:"teacher_name" validate:"max=120"`
	PaymentType billing.PaymentType `json:"payment_type" validate:"required"`
	Price       decimal.Decimal     `json:"price" swaggertype:"string"`
}

// UpdateGroupRequest holds payload for updating groups. The payment type cannot change.
type UpdateGroupRequest struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Subject     string          `json:"subject" validate:"max=120"`
	TeacherName string          `json:"teacher_name" validate:"max=120"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
}

// GroupService manages tutoring groups and their billing configuration.
type GroupService struct {
	repo      groupRepository
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(repo groupRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns groups and pagination metadata.
func (s *GroupService) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, *models.Pagination, error) {
	if filter.PaymentType != "" && !filter.PaymentType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrUnsupportedPaymentType, "unsupported payment_type filter")
	}
	groups, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns a single group.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}

// Create registers a new group.
func (s *GroupService) Create(ctx context.Context, req CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if !req.PaymentType.Valid() {
		return nil, appErrors.ErrUnsupportedPaymentType
	}
	if !req.Price.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must be positive")
	}
	group := &models.Group{
		Name:        req.Name,
		Subject:     req.Subject,
		TeacherName: req.TeacherName,
		PaymentType: req.PaymentType,
		Price:       req.Price,
	}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("payment_type", string(group.PaymentType)))
	return group, nil
}

// Update changes descriptive fields and price.
func (s *GroupService) Update(ctx context.Context, id string, req UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if !req.Price.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must be positive")
	}
	group, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	group.Name = req.Name
	group.Subject = req.Subject
	group.TeacherName = req.TeacherName
	group.Price = req.Price
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	invalidateBilling(ctx, s.cache, s.logger)
	return group, nil
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
