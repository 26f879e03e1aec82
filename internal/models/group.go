package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-billing-api/internal/billing"
)

// Group is a class of students billed under one payment model.
type Group struct {
	ID          string              `db:"id" json:"id"`
	Name        string              `db:"name" json:"name"`
	Subject     string              `db:"subject" json:"subject"`
	TeacherName string              `db:"teacher_name" json:"teacher_name"`
	PaymentType billing.PaymentType `db:"payment_type" json:"payment_type"`
	Price       decimal.Decimal     `db:"price" json:"price"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updated_at"`
}

// BillingConfig returns the group's billing configuration.
func (g Group) BillingConfig() billing.GroupBillingConfig {
	return billing.GroupBillingConfig{PaymentType: g.PaymentType, Price: g.Price}
}

// GroupFilter encapsulates allowed search parameters for listing groups.
type GroupFilter struct {
	Search      string
	PaymentType billing.PaymentType
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
