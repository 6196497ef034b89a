package controllers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/models"
	"github.com/eyerest/eyerest_backend/internal/notify"
	"github.com/eyerest/eyerest_backend/internal/utils"
)

const stripeMaxBodyBytes = 65536

type StripeController struct {
	DB            *gorm.DB
	WebhookSecret string
}

// Webhook handles Stripe event deliveries. Signature verification is
// mandatory; unhandled event types are acknowledged so Stripe stops
// retrying them.
func (s *StripeController) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, stripeMaxBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), s.WebhookSecret)
	if err != nil {
		slog.Warn("stripe webhook signature verification failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		err = s.handleSubscriptionChange(event.ID, &sub)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		err = s.handleSubscriptionDeleted(event.ID, &sub)
	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		err = s.handlePaymentSucceeded(event.ID, &inv)
	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
			return
		}
		err = s.handlePaymentFailed(event.ID, &inv)
	default:
		slog.Debug("stripe event ignored", "type", event.Type, "id", event.ID)
	}

	if err != nil {
		slog.Error("stripe webhook processing failed", "type", event.Type, "id", event.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *StripeController) userByCustomer(customerID string) (*models.User, error) {
	var user models.User
	err := s.DB.Where("stripe_customer_id = ?", customerID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *StripeController) handleSubscriptionChange(eventID string, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return nil
	}
	user, err := s.userByCustomer(sub.Customer.ID)
	if err != nil {
		slog.Warn("stripe subscription for unknown customer", "customer", sub.Customer.ID)
		return nil
	}

	record := models.StripeSubscription{UserIDRef: user.ID}
	if err := s.DB.Where(models.StripeSubscription{UserIDRef: user.ID}).
		FirstOrCreate(&record).Error; err != nil {
		return err
	}
	// Repeat deliveries of the same event are no-ops.
	if record.LastEventID == eventID {
		return nil
	}

	now := time.Now().UTC()
	record.StripeSubscriptionID = sub.ID
	record.StripeCustomerID = sub.Customer.ID
	record.LastEventID = eventID

	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	active := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing

	if active {
		record.Status = models.ProviderSubActive
		if record.ActivatedAt == nil {
			record.ActivatedAt = &now
		}
		record.NextPaymentDate = &periodEnd
	} else {
		record.Status = models.ProviderSubSuspended
	}
	if err := s.DB.Save(&record).Error; err != nil {
		return err
	}

	return s.syncUserAccess(user, sub, active, periodEnd, eventID)
}

// syncUserAccess flips the denormalized premium flag on the user row and
// keeps the plan membership in step with the provider.
func (s *StripeController) syncUserAccess(user *models.User, sub *stripe.Subscription, active bool, periodEnd time.Time, eventID string) error {
	wasPremium := user.SubscriptionType == models.SubscriptionPremium
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if active {
			if err := tx.Model(user).Updates(map[string]interface{}{
				"subscription_type":       models.SubscriptionPremium,
				"subscription_start_date": &now,
				"subscription_end_date":   &periodEnd,
			}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(user).Updates(map[string]interface{}{
				"subscription_type":     models.SubscriptionFree,
				"subscription_end_date": &now,
			}).Error; err != nil {
				return err
			}
		}

		membership := models.UserSubscription{UserIDRef: user.ID}
		if err := tx.Where(models.UserSubscription{UserIDRef: user.ID}).
			FirstOrCreate(&membership).Error; err != nil {
			return err
		}
		membership.StripeSubscriptionID = sub.ID
		membership.StripeCustomerID = sub.Customer.ID
		membership.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC()
		membership.CurrentPeriodEnd = periodEnd
		membership.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if active {
			membership.Status = models.SubStatusActive
			if membership.StartDate.IsZero() {
				membership.StartDate = now
			}
		} else {
			membership.Status = models.SubStatusPastDue
		}
		if membership.PlanIDRef == 0 {
			var plan models.SubscriptionPlan
			if tx.Where("slug = ?", "premium-monthly").First(&plan).Error == nil {
				membership.PlanIDRef = plan.ID
			}
		}
		if err := tx.Save(&membership).Error; err != nil {
			return err
		}

		eventType := models.EventSubscriptionActivated
		if !active {
			eventType = models.EventPaymentFailed
		}
		payload, _ := json.Marshal(map[string]any{
			"stripe_subscription_id": sub.ID,
			"stripe_event_id":        eventID,
			"status":                 string(sub.Status),
		})
		return tx.Create(&models.SubscriptionEvent{
			UserIDRef:         user.ID,
			SubscriptionIDRef: &membership.ID,
			EventType:         eventType,
			EventData:         payload,
			Source:            "stripe",
		}).Error
	})
	if err == nil && active && !wasPremium {
		notify.Send(s.DB, user.ID, "subscription-activated", nil)
	}
	return err
}

func (s *StripeController) handleSubscriptionDeleted(eventID string, sub *stripe.Subscription) error {
	if sub.Customer == nil {
		return nil
	}
	user, err := s.userByCustomer(sub.Customer.ID)
	if err != nil {
		return nil
	}

	now := time.Now().UTC()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.StripeSubscription{}).
			Where("user_id_ref = ?", user.ID).
			Updates(map[string]interface{}{
				"status":        models.ProviderSubCancelled,
				"cancelled_at":  &now,
				"last_event_id": eventID,
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(user).Updates(map[string]interface{}{
			"subscription_type":     models.SubscriptionFree,
			"subscription_end_date": &now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserSubscription{}).
			Where("user_id_ref = ?", user.ID).
			Updates(map[string]interface{}{
				"status":      models.SubStatusCanceled,
				"canceled_at": &now,
			}).Error; err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]any{
			"stripe_subscription_id": sub.ID,
			"stripe_event_id":        eventID,
		})
		return tx.Create(&models.SubscriptionEvent{
			UserIDRef: user.ID,
			EventType: models.EventSubscriptionCanceled,
			EventData: payload,
			Source:    "stripe",
		}).Error
	})
	if err == nil {
		notify.Send(s.DB, user.ID, "subscription-canceled", nil)
	}
	return err
}

func (s *StripeController) handlePaymentSucceeded(eventID string, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return nil
	}
	user, err := s.userByCustomer(inv.Customer.ID)
	if err != nil {
		return nil
	}

	intentID := ""
	if inv.PaymentIntent != nil {
		intentID = inv.PaymentIntent.ID
	}
	if intentID == "" {
		intentID = "in_" + inv.ID
	}

	// The unique payment-intent index makes redelivered events idempotent.
	var existing models.StripePayment
	if s.DB.Where("stripe_payment_intent_id = ?", intentID).First(&existing).Error == nil {
		return nil
	}

	now := time.Now().UTC()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		payment := models.StripePayment{
			UserIDRef:             user.ID,
			StripePaymentIntentID: intentID,
			PaymentStatus:         models.PaymentCompleted,
			AmountCents:           inv.AmountPaid,
			Currency:              string(inv.Currency),
			StripeCustomerID:      inv.Customer.ID,
			StripeInvoiceID:       inv.ID,
			StripeEventID:         eventID,
			PaymentDate:           now,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		tx.Model(&models.StripeSubscription{}).
			Where("user_id_ref = ?", user.ID).
			Update("last_payment_date", &now)

		var membership models.UserSubscription
		if tx.Where("user_id_ref = ?", user.ID).First(&membership).Error == nil {
			number, err := utils.GenerateInvoiceNumber(now)
			if err != nil {
				return err
			}
			local := models.Invoice{
				UserIDRef:         user.ID,
				SubscriptionIDRef: membership.ID,
				InvoiceNumber:     number,
				StripeInvoiceID:   inv.ID,
				SubtotalCents:     inv.AmountPaid,
				TotalCents:        inv.AmountPaid,
				AmountPaidCents:   inv.AmountPaid,
				Currency:          string(inv.Currency),
				Status:            models.InvoicePaid,
				DueDate:           now,
				PaidAt:            &now,
				PeriodStart:       membership.CurrentPeriodStart,
				PeriodEnd:         membership.CurrentPeriodEnd,
			}
			if err := tx.Create(&local).Error; err != nil {
				return err
			}
		}

		payload, _ := json.Marshal(map[string]any{
			"stripe_invoice_id": inv.ID,
			"amount_cents":      inv.AmountPaid,
			"stripe_event_id":   eventID,
		})
		return tx.Create(&models.SubscriptionEvent{
			UserIDRef: user.ID,
			EventType: models.EventPaymentSucceeded,
			EventData: payload,
			Source:    "stripe",
		}).Error
	})
}

func (s *StripeController) handlePaymentFailed(eventID string, inv *stripe.Invoice) error {
	if inv.Customer == nil {
		return nil
	}
	user, err := s.userByCustomer(inv.Customer.ID)
	if err != nil {
		return nil
	}

	s.DB.Model(&models.UserSubscription{}).
		Where("user_id_ref = ?", user.ID).
		Update("status", models.SubStatusPastDue)

	payload, _ := json.Marshal(map[string]any{
		"stripe_invoice_id": inv.ID,
		"amount_cents":      inv.AmountDue,
		"stripe_event_id":   eventID,
	})
	notify.Send(s.DB, user.ID, "payment-failed", nil)
	return s.DB.Create(&models.SubscriptionEvent{
		UserIDRef: user.ID,
		EventType: models.EventPaymentFailed,
		EventData: payload,
		Source:    "stripe",
	}).Error
}
