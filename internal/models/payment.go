package models

import "time"

// Provider-side subscription statuses
const (
	ProviderSubActive    = "active"
	ProviderSubCancelled = "cancelled"
	ProviderSubSuspended = "suspended"
	ProviderSubExpired   = "expired"
	ProviderSubPending   = "pending"
)

// Payment statuses
const (
	PaymentCompleted = "completed"
	PaymentPending   = "pending"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
	PaymentRefunded  = "refunded"
)

// StripeSubscription mirrors the provider-side subscription for a user.
type StripeSubscription struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	StripeSubscriptionID  string `gorm:"size:100;uniqueIndex"`
	StripeCustomerID      string `gorm:"size:100"`
	StripePaymentMethodID string `gorm:"size:100"`

	AmountCents int64  `gorm:"default:99"`
	Currency    string `gorm:"size:3;default:USD"`
	Status      string `gorm:"size:20;default:pending"`

	ActivatedAt     *time.Time
	NextPaymentDate *time.Time
	CancelledAt     *time.Time

	LastEventID     string `gorm:"size:255"`
	LastPaymentDate *time.Time

	CardBrand    string `gorm:"size:20"`
	CardLast4    string `gorm:"size:4"`
	CardExpMonth *uint
	CardExpYear  *uint

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *StripeSubscription) IsActive() bool {
	return s.Status == ProviderSubActive
}

type StripePayment struct {
	ID                uint  `gorm:"primaryKey"`
	UserIDRef         uint  `gorm:"index"`
	SubscriptionIDRef *uint `gorm:"index"`

	StripePaymentIntentID string `gorm:"size:100;uniqueIndex"`
	PaymentStatus         string `gorm:"size:20"`
	AmountCents           int64
	Currency              string `gorm:"size:3;default:USD"`

	StripeCustomerID string `gorm:"size:100"`
	StripeInvoiceID  string `gorm:"size:100"`

	CardBrand string `gorm:"size:20"`
	CardLast4 string `gorm:"size:4"`

	StripeEventID string `gorm:"size:255"`
	PaymentDate   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PayPalSubscription mirrors the PayPal-side subscription for a user.
type PayPalSubscription struct {
	ID        uint `gorm:"primaryKey"`
	UserIDRef uint `gorm:"uniqueIndex"`

	PayPalSubscriptionID string `gorm:"size:100;uniqueIndex"`
	PayPalPayerID        string `gorm:"size:100"`
	PayPalPayerEmail     string `gorm:"size:255"`

	AmountCents int64  `gorm:"default:99"`
	Currency    string `gorm:"size:3;default:USD"`
	Status      string `gorm:"size:20;default:pending"`

	ActivatedAt     *time.Time
	NextPaymentDate *time.Time
	CancelledAt     *time.Time

	IPNTrackID      string `gorm:"size:255"`
	LastPaymentDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *PayPalSubscription) IsActive() bool {
	return s.Status == ProviderSubActive
}

type PayPalPayment struct {
	ID                uint  `gorm:"primaryKey"`
	UserIDRef         uint  `gorm:"index"`
	SubscriptionIDRef *uint `gorm:"index"`

	PayPalTransactionID string `gorm:"size:100;uniqueIndex"`
	PaymentStatus       string `gorm:"size:20"`
	AmountCents         int64
	Currency            string `gorm:"size:3;default:USD"`

	PayPalPayerID       string `gorm:"size:100"`
	PayPalPayerEmail    string `gorm:"size:255"`
	PayPalReceiverEmail string `gorm:"size:255"`

	IPNTrackID  string `gorm:"size:255"`
	PaymentDate time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
