package models

import "time"

// Billing periods
const (
	BillingMonthly  = "monthly"
	BillingYearly   = "yearly"
	BillingLifetime = "lifetime"
)

// Subscription statuses mirror Stripe's subscription lifecycle.
const (
	SubStatusTrialing   = "trialing"
	SubStatusActive     = "active"
	SubStatusPastDue    = "past_due"
	SubStatusCanceled   = "canceled"
	SubStatusUnpaid     = "unpaid"
	SubStatusIncomplete = "incomplete"
	SubStatusPaused     = "paused"
)

// SubscriptionPlan is a purchasable plan. Prices are integer cents.
type SubscriptionPlan struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100"`
	Slug        string `gorm:"size:100;uniqueIndex"`
	Description string `gorm:"type:text"`

	PriceCents    int64
	Currency      string `gorm:"size:3;default:USD"`
	BillingPeriod string `gorm:"size:20"`

	MaxDailySessions    uint // 0 = unlimited
	AdvancedAnalytics   bool
	CustomBreakMessages bool
	PrioritySupport     bool
	APIAccess           bool

	StripePriceID   string `gorm:"size:100"`
	StripeProductID string `gorm:"size:100"`

	IsActive   bool `gorm:"default:true"`
	IsFeatured bool
	SortOrder  uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MonthlyPriceCents normalizes yearly plans for comparison displays.
func (p *SubscriptionPlan) MonthlyPriceCents() int64 {
	if p.BillingPeriod == BillingYearly {
		return p.PriceCents / 12
	}
	return p.PriceCents
}

// UserSubscription is the user's current plan membership.
type UserSubscription struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`
	PlanIDRef uint `gorm:"index"`

	Status string `gorm:"size:20;default:trialing"`

	StartDate          time.Time
	EndDate            *time.Time
	TrialEnd           *time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	CancelAtPeriodEnd bool
	CanceledAt        *time.Time

	StripeSubscriptionID string `gorm:"size:100;index"`
	StripeCustomerID     string `gorm:"size:100"`

	SessionsThisPeriod uint
	APICallsThisPeriod uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the subscription currently grants access.
func (s *UserSubscription) IsActive(now time.Time) bool {
	if s.Status != SubStatusActive && s.Status != SubStatusTrialing {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}

func (s *UserSubscription) DaysRemaining(now time.Time) int {
	d := s.CurrentPeriodEnd.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Invoice statuses
const (
	InvoiceDraft = "draft"
	InvoiceOpen  = "open"
	InvoicePaid  = "paid"
	InvoiceVoid  = "void"
)

type Invoice struct {
	ID                uint `gorm:"primaryKey"`
	UserIDRef         uint `gorm:"index"`
	SubscriptionIDRef uint `gorm:"index"`

	InvoiceNumber   string `gorm:"size:100;uniqueIndex"`
	StripeInvoiceID string `gorm:"size:100"`

	SubtotalCents   int64
	TaxCents        int64
	TotalCents      int64
	AmountPaidCents int64
	Currency        string `gorm:"size:3;default:USD"`

	Status string `gorm:"size:20;default:draft"`

	DueDate     time.Time
	PaidAt      *time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status == InvoiceOpen && i.DueDate.Before(now)
}

// Subscription lifecycle event types
const (
	EventSubscriptionCreated   = "subscription_created"
	EventSubscriptionActivated = "subscription_activated"
	EventSubscriptionCanceled  = "subscription_canceled"
	EventPaymentSucceeded      = "payment_succeeded"
	EventPaymentFailed         = "payment_failed"
	EventInvoicePaid           = "invoice_paid"
)

// SubscriptionEvent is an append-only audit row for lifecycle changes.
type SubscriptionEvent struct {
	ID                uint `gorm:"primaryKey"`
	UserIDRef         uint `gorm:"index:idx_subevent_user_type,priority:1"`
	SubscriptionIDRef *uint
	EventType         string    `gorm:"size:30;index:idx_subevent_user_type,priority:2"`
	EventData         []byte    `gorm:"type:jsonb"`
	Source            string    `gorm:"size:50;default:system"` // system, stripe, paypal, manual
	CreatedAt         time.Time `gorm:"index"`
}
