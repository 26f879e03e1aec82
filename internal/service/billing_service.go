package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
	"github.com/noah-isme/tutor-billing-api/internal/dto"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type billableLister interface {
	ListBillable(ctx context.Context) ([]models.EnrollmentDetail, error)
}

// BillingService answers read-side billing questions across all enrollments.
type BillingService struct {
	enrollments billableLister
	cache       *CacheService
	summaryTTL  time.Duration
	logger      *zap.Logger
}

// NewBillingService constructs the billing read service.
func NewBillingService(enrollments billableLister, cache *CacheService, summaryTTL time.Duration, logger *zap.Logger) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{enrollments: enrollments, cache: cache, summaryTTL: summaryTTL, logger: logger}
}

// Summary counts active and overdue enrollments per group on the calendar day of now.
// The boolean reports whether the summary came from cache. Entries are keyed by the billing
// cache generation read before the database, so a write racing this read leaves the stored
// entry under a generation no later reader uses.
func (s *BillingService) Summary(ctx context.Context, now time.Time) (*dto.BillingSummary, bool, error) {
	generation := s.cache.Generation(ctx, billingGenerationKey)
	key := fmt.Sprintf("billing:summary:%s:g%d", now.Format(dateLayout), generation)
	var cached dto.BillingSummary
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	items, err := s.enrollments.ListBillable(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	summary := summarize(items, now)
	if err := s.cache.Set(ctx, key, summary, s.summaryTTL); err != nil {
		s.logger.Debug("billing summary not cached", zap.Error(err))
	}
	return summary, false, nil
}

// Overdue lists overdue enrollments on the calendar day of now, most overdue first.
func (s *BillingService) Overdue(ctx context.Context, now time.Time) (*dto.OverdueReport, error) {
	items, err := s.enrollments.ListBillable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return &dto.OverdueReport{Date: now.Format(dateLayout), Items: overdueItems(items, now)}, nil
}

func summarize(items []models.EnrollmentDetail, now time.Time) *dto.BillingSummary {
	summary := &dto.BillingSummary{Date: now.Format(dateLayout), Groups: []dto.GroupStatusSummary{}}
	index := make(map[string]int)
	for _, item := range items {
		pos, ok := index[item.GroupID]
		if !ok {
			pos = len(summary.Groups)
			index[item.GroupID] = pos
			summary.Groups = append(summary.Groups, dto.GroupStatusSummary{
				GroupID:     item.GroupID,
				GroupName:   item.GroupName,
				PaymentType: item.PaymentType,
			})
		}
		summary.Total++
		if billing.CheckStudentStatus(item.Snapshot(), item.BillingConfig(), now) == billing.StatusOverdue {
			summary.Overdue++
			summary.Groups[pos].Overdue++
		} else {
			summary.Active++
			summary.Groups[pos].Active++
		}
	}
	return summary
}

func overdueItems(items []models.EnrollmentDetail, now time.Time) []dto.OverdueItem {
	result := make([]dto.OverdueItem, 0)
	for _, item := range items {
		if billing.CheckStudentStatus(item.Snapshot(), item.BillingConfig(), now) != billing.StatusOverdue {
			continue
		}
		overdue := dto.OverdueItem{
			EnrollmentID:     item.ID,
			StudentID:        item.StudentID,
			StudentName:      item.StudentName,
			GroupID:          item.GroupID,
			GroupName:        item.GroupName,
			PaymentType:      item.PaymentType,
			Price:            item.Price,
			NextDueDate:      item.NextDueDate,
			LessonsRemaining: item.LessonsRemaining,
		}
		if item.PaymentType.Monthly() && item.NextDueDate != nil {
			overdue.DaysOverdue = -billing.DaysUntil(*item.NextDueDate, now)
		}
		result = append(result, overdue)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DaysOverdue > result[j].DaysOverdue
	})
	return result
}
